package mint

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

type Client struct {
	backend         Backend
	contract        common.Address
	contractABI     abi.ABI
	mintMethod      abi.Method
	batchMethod     *abi.Method
	signer          *ecdsa.PrivateKey
	from            common.Address
	stripURIPrefix  bool
	confirmInterval time.Duration
	confirmAttempts int
	logger          *zerolog.Logger

	chainMutex sync.Mutex
	chainID    *big.Int
}

// NewClient creates a new Client. The contract interface and entrypoints are
// resolved here so that a misconfigured client never reaches the network.
func NewClient(config Config) (*Client, error) {
	rawInterface := config.Interface
	if len(rawInterface) == 0 {
		path := strings.TrimSpace(config.InterfacePath)
		if path == "" {
			return nil, &shared.ConfigurationError{Setting: "ledger.deployment", Message: "contract interface is required"}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &shared.ConfigurationError{Setting: "ledger.deployment", Message: fmt.Sprintf("cannot read %s: %v", path, err)}
		}
		rawInterface = data
	}

	contract, err := ParseInterface(rawInterface)
	if err != nil {
		return nil, &shared.ConfigurationError{Setting: "ledger.deployment", Message: err.Error()}
	}

	if address := strings.TrimSpace(config.ContractAddress); address != "" {
		if !common.IsHexAddress(address) {
			return nil, &shared.ConfigurationError{Setting: "ledger.contract_address", Message: fmt.Sprintf("invalid address %q", address)}
		}
		contract.Address = common.HexToAddress(address)
	}
	if contract.Address == (common.Address{}) {
		return nil, &shared.ConfigurationError{Setting: "ledger.contract_address", Message: "is required when the deployment record has no address"}
	}

	mintName := strings.TrimSpace(config.MintMethod)
	if mintName == "" {
		mintName = DefaultMintMethod
	}
	mintMethod, err := resolveEntrypoint(contract.ABI, "ledger.mint_method", mintName, "address", "string")
	if err != nil {
		return nil, err
	}

	var batchMethod *abi.Method
	if batchName := strings.TrimSpace(config.BatchMintMethod); batchName != "" {
		method, err := resolveEntrypoint(contract.ABI, "ledger.batch_mint_method", batchName, "address[]", "string[]")
		if err != nil {
			return nil, err
		}
		batchMethod = &method
	}

	var signer *ecdsa.PrivateKey
	var from common.Address
	if privateKey := strings.TrimPrefix(strings.TrimSpace(config.PrivateKey), "0x"); privateKey != "" {
		signer, err = crypto.HexToECDSA(privateKey)
		if err != nil {
			return nil, &shared.ConfigurationError{Setting: "ledger.private_key", Message: "is not a valid secp256k1 key"}
		}
		from = crypto.PubkeyToAddress(signer.PublicKey)
	}

	backend := config.Backend
	if backend == nil {
		rpcURL := strings.TrimSpace(config.RPCURL)
		if rpcURL == "" {
			return nil, &shared.ConfigurationError{Setting: "ledger.rpc_url", Message: "is required"}
		}
		dialed, err := ethclient.Dial(rpcURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", rpcURL, err)
		}
		backend = dialed
	}

	confirmInterval := config.ConfirmInterval
	if confirmInterval <= 0 {
		confirmInterval = DefaultConfirmInterval
	}
	confirmAttempts := config.ConfirmAttempts
	if confirmAttempts <= 0 {
		confirmAttempts = DefaultConfirmAttempts
	}

	return &Client{
		backend:         backend,
		contract:        contract.Address,
		contractABI:     contract.ABI,
		mintMethod:      mintMethod,
		batchMethod:     batchMethod,
		signer:          signer,
		from:            from,
		stripURIPrefix:  config.StripURIPrefix,
		confirmInterval: confirmInterval,
		confirmAttempts: confirmAttempts,
		logger:          shared.LoggerOrNop(config.Logger),
	}, nil
}

// ContractAddress returns the address of the NFT contract.
func (c *Client) ContractAddress() string {
	return c.contract.Hex()
}

// SignerAddress returns the address transactions are sent from, or an empty
// string for a read-only client.
func (c *Client) SignerAddress() string {
	if c.signer == nil {
		return ""
	}
	return c.from.Hex()
}

// Mint mints one token for owner bound to uri and returns its id.
func (c *Client) Mint(ctx context.Context, owner string, uri string) (*big.Int, error) {
	ownerAddress, err := parseAddress("owner", owner)
	if err != nil {
		return nil, err
	}

	confirmation, err := c.submit(ctx, c.mintMethod, 1, ownerAddress, c.tokenURI(uri))
	if err != nil {
		return nil, err
	}
	return confirmation.TokenIDs[0], nil
}

// MintBatch mints one token per owner/URI pair in a single transaction and
// returns the ids in receipt order.
func (c *Client) MintBatch(ctx context.Context, owners []string, uris []string) ([]*big.Int, error) {
	if len(owners) != len(uris) {
		return nil, fmt.Errorf("%w: %d owners, %d URIs", ErrBatchLengthMismatch, len(owners), len(uris))
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	if c.batchMethod == nil {
		return nil, &shared.ConfigurationError{Setting: "ledger.batch_mint_method", Message: "is required for batch minting"}
	}

	ownerAddresses := make([]common.Address, 0, len(owners))
	for index, owner := range owners {
		address, err := parseAddress(fmt.Sprintf("owner %d", index), owner)
		if err != nil {
			return nil, err
		}
		ownerAddresses = append(ownerAddresses, address)
	}
	tokenURIs := make([]string, 0, len(uris))
	for _, uri := range uris {
		tokenURIs = append(tokenURIs, c.tokenURI(uri))
	}

	confirmation, err := c.submit(ctx, *c.batchMethod, len(owners), ownerAddresses, tokenURIs)
	if err != nil {
		return nil, err
	}
	return confirmation.TokenIDs[:len(owners)], nil
}

// TokenURI reads the metadata URI of tokenID, trying the ERC-721 tokenURI
// and the ERC-1155 uri getters.
func (c *Client) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	for _, name := range []string{"tokenURI", "uri"} {
		method, ok := findMethod(c.contractABI, name, "uint256")
		if !ok {
			continue
		}
		values, err := c.call(ctx, method, tokenID)
		if err != nil {
			return "", err
		}
		uri, ok := values[0].(string)
		if !ok {
			return "", fmt.Errorf("%s returned %T", name, values[0])
		}
		return uri, nil
	}
	return "", &shared.ConfigurationError{Setting: "ledger.deployment", Message: "contract has no tokenURI(uint256) or uri(uint256) method"}
}

// OwnerOf reads the current owner of tokenID.
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (string, error) {
	method, ok := findMethod(c.contractABI, "ownerOf", "uint256")
	if !ok {
		return "", &shared.ConfigurationError{Setting: "ledger.deployment", Message: "contract has no ownerOf(uint256) method"}
	}
	values, err := c.call(ctx, method, tokenID)
	if err != nil {
		return "", err
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("ownerOf returned %T", values[0])
	}
	return owner.Hex(), nil
}

// Transfer moves tokenID from the signer to recipient with
// safeTransferFrom and returns the confirmed transaction hash.
func (c *Client) Transfer(ctx context.Context, recipient string, tokenID *big.Int) (string, error) {
	to, err := parseAddress("recipient", recipient)
	if err != nil {
		return "", err
	}
	method, ok := findMethod(c.contractABI, "safeTransferFrom", "address", "address", "uint256")
	if !ok {
		return "", &shared.ConfigurationError{Setting: "ledger.deployment", Message: "contract has no safeTransferFrom(address,address,uint256) method"}
	}

	receipt, err := c.execute(ctx, method, c.from, to, tokenID)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (c *Client) tokenURI(uri string) string {
	if c.stripURIPrefix {
		return strings.TrimPrefix(strings.TrimSpace(uri), ipfs.URIPrefix)
	}
	return uri
}

func (c *Client) submit(ctx context.Context, method abi.Method, expected int, args ...any) (Confirmation, error) {
	receipt, err := c.execute(ctx, method, args...)
	if err != nil {
		return Confirmation{}, err
	}

	ids, shape, err := extractTokenIDs(receipt, c.contract)
	if err != nil {
		return Confirmation{}, &TransactionError{
			TxHash: receipt.TxHash.Hex(),
			Reason: "no recognized transfer event in receipt",
			Events: describeLogs(receipt),
			Err:    err,
		}
	}
	if len(ids) < expected {
		return Confirmation{}, &TransactionError{
			TxHash: receipt.TxHash.Hex(),
			Reason: fmt.Sprintf("receipt reports %d token ids for %d mints", len(ids), expected),
			Events: describeLogs(receipt),
			Err:    ErrTokenIDUndeterminable,
		}
	}

	confirmation := Confirmation{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
		Event:       shape,
		TokenIDs:    ids,
	}
	tokenIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		tokenIDs = append(tokenIDs, id.String())
	}
	c.logger.Info().
		Str("tx", confirmation.TxHash).
		Str("event", shape).
		Strs("token_ids", tokenIDs).
		Msg("mint confirmed")
	return confirmation, nil
}

// execute signs and sends a call to method, then waits for a successful
// receipt.
func (c *Client) execute(ctx context.Context, method abi.Method, args ...any) (*types.Receipt, error) {
	if c.signer == nil {
		return nil, &shared.ConfigurationError{Setting: "ledger.private_key", Message: "is required to send transactions"}
	}

	data, err := c.contractABI.Pack(method.Name, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s call: %w", method.RawName, err)
	}

	chainID, err := c.chain(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, rpcFailure("eth_getTransactionCount", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, rpcFailure("eth_gasPrice", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.from,
		To:       &c.contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimating gas for %s: %w", method.RawName, rpcFailure("eth_estimateGas", err))
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.contract,
		Data:     data,
	}), types.LatestSignerForChainID(chainID), c.signer)
	if err != nil {
		return nil, fmt.Errorf("signing %s transaction: %w", method.RawName, err)
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, rpcFailure("eth_sendRawTransaction", err)
	}
	c.logger.Info().
		Str("tx", tx.Hash().Hex()).
		Str("method", method.RawName).
		Uint64("gas", gas).
		Uint64("nonce", nonce).
		Msg("submitted transaction")

	receipt, err := c.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &TransactionError{
			TxHash: tx.Hash().Hex(),
			Reason: fmt.Sprintf("%s reverted", method.RawName),
			Events: describeLogs(receipt),
		}
	}
	return receipt, nil
}

func (c *Client) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for attempt := 0; attempt < c.confirmAttempts; attempt++ {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.TxHash == (common.Hash{}) {
				receipt.TxHash = hash
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, rpcFailure("eth_getTransactionReceipt", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.confirmInterval):
		}
	}

	return nil, &TransactionError{
		TxHash: hash.Hex(),
		Reason: fmt.Sprintf("not confirmed after %d attempts", c.confirmAttempts),
	}
}

func (c *Client) call(ctx context.Context, method abi.Method, args ...any) ([]any, error) {
	data, err := c.contractABI.Pack(method.Name, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s call: %w", method.RawName, err)
	}
	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, rpcFailure("eth_call", err)
	}
	values, err := c.contractABI.Unpack(method.Name, output)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method.RawName, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method.RawName)
	}
	return values, nil
}

func (c *Client) chain(ctx context.Context) (*big.Int, error) {
	c.chainMutex.Lock()
	defer c.chainMutex.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, rpcFailure("eth_chainId", err)
	}
	c.chainID = chainID
	return chainID, nil
}

// rpcFailure classifies a backend error. Errors returned by the node itself
// (reverts, bad nonces) are not retryable; transport failures are.
func rpcFailure(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var nodeErr rpc.Error
	retryable := !errors.As(err, &nodeErr)
	var httpErr rpc.HTTPError
	status := 0
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode
		retryable = status >= 500 || status == 429
	}
	return &shared.NetworkError{Op: op, Status: status, Retryable: retryable, Err: err}
}

func parseAddress(label string, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s %q is not a valid address", label, value)
	}
	return common.HexToAddress(trimmed), nil
}
