package hts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/mint"
	"github.com/skeetzo/minty-fresh-go/pkg/mirror"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

type Client struct {
	hederaClient      *hedera.Client
	operatorAccountID hedera.AccountID
	supplyKey         hedera.PrivateKey
	tokenID           hedera.TokenID
	memo              string
	mirror            *mirror.Client
	logger            *zerolog.Logger
}

// NewClient validates the configuration and prepares an operator client.
// Nothing is sent to the network until the first mint.
func NewClient(config Config) (*Client, error) {
	if strings.TrimSpace(config.Operator.AccountID) == "" {
		return nil, &shared.ConfigurationError{Setting: "ledger.operator.account_id", Message: "is required"}
	}
	if strings.TrimSpace(config.Operator.PrivateKey) == "" {
		return nil, &shared.ConfigurationError{Setting: "ledger.operator.private_key", Message: "is required"}
	}
	tokenID, err := parseTokenID(config.TokenID)
	if err != nil {
		return nil, &shared.ConfigurationError{Setting: "ledger.token_id", Message: err.Error()}
	}

	hederaClient, accountID, operatorKey, err := shared.NewOperatorClient(config.Operator)
	if err != nil {
		return nil, err
	}

	supplyKey := operatorKey
	if strings.TrimSpace(config.SupplyKey) != "" {
		supplyKey, err = shared.ParsePrivateKey(config.SupplyKey)
		if err != nil {
			return nil, fmt.Errorf("invalid supply key: %w", err)
		}
	}

	mirrorClient := config.Mirror
	if mirrorClient == nil {
		mirrorClient, err = mirror.NewClient(mirror.Config{
			Network: config.Operator.Network,
			BaseURL: config.MirrorURL,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		hederaClient:      hederaClient,
		operatorAccountID: accountID,
		supplyKey:         supplyKey,
		tokenID:           tokenID,
		memo:              strings.TrimSpace(config.Memo),
		mirror:            mirrorClient,
		logger:            shared.LoggerOrNop(config.Logger),
	}, nil
}

// TokenID returns the collection serials are minted into.
func (c *Client) TokenID() string {
	return c.tokenID.String()
}

// Treasury returns the account that receives freshly minted serials.
func (c *Client) Treasury() string {
	return c.operatorAccountID.String()
}

// Collection returns the mirror node's view of the token.
func (c *Client) Collection(ctx context.Context) (mirror.TokenInfo, error) {
	return c.mirror.GetToken(ctx, c.tokenID.String())
}

// Mint mints one serial bound to uri, transfers it to owner when owner is
// not the treasury, and returns the serial number.
func (c *Client) Mint(ctx context.Context, owner string, uri string) (*big.Int, error) {
	ids, err := c.MintBatch(ctx, []string{owner}, []string{uri})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

// MintBatch mints one serial per owner/URI pair, MaxBatchSize serials per
// transaction, and returns the serial numbers in input order. Serials that
// were minted before a failure are listed in the returned *PartialMintError.
func (c *Client) MintBatch(ctx context.Context, owners []string, uris []string) ([]*big.Int, error) {
	if len(owners) != len(uris) {
		return nil, fmt.Errorf("%w: %d owners, %d URIs", mint.ErrBatchLengthMismatch, len(owners), len(uris))
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	for index, owner := range owners {
		if trimmed := strings.TrimSpace(owner); trimmed != "" {
			if _, err := hedera.AccountIDFromString(trimmed); err != nil {
				return nil, fmt.Errorf("invalid owner %d account ID %q: %w", index, trimmed, err)
			}
		}
	}

	return c.runGroups(ctx, owners, uris, c.mintGroup, c.deliver)
}

type (
	groupMinter    func(ctx context.Context, uris []string) ([]int64, error)
	groupDeliverer func(ctx context.Context, serials []int64, owners []string) error
)

// runGroups mints and delivers MaxBatchSize serials at a time. Once anything
// has been minted, a failure is reported as a *PartialMintError.
func (c *Client) runGroups(ctx context.Context, owners []string, uris []string, mintGroup groupMinter, deliver groupDeliverer) ([]*big.Int, error) {
	ids := make([]*big.Int, 0, len(uris))
	for start := 0; start < len(uris); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(uris))

		serials, err := mintGroup(ctx, uris[start:end])
		if err != nil {
			if len(ids) == 0 {
				return nil, err
			}
			return nil, c.partialFailure(ids, nil, err)
		}

		minted := make([]*big.Int, 0, len(serials))
		for _, serial := range serials {
			minted = append(minted, big.NewInt(serial))
		}
		ids = append(ids, minted...)

		if err := deliver(ctx, serials, owners[start:end]); err != nil {
			return nil, c.partialFailure(ids, c.undelivered(minted, owners[start:end]), err)
		}
	}

	return ids, nil
}

func (c *Client) partialFailure(minted []*big.Int, undelivered []*big.Int, err error) error {
	c.logger.Warn().
		Str("token_id", c.tokenID.String()).
		Str("minted", joinSerials(minted)).
		Str("undelivered", joinSerials(undelivered)).
		Err(err).
		Msg("batch mint stopped part way")
	return &PartialMintError{
		TokenID:     c.tokenID.String(),
		Minted:      minted,
		Undelivered: undelivered,
		Err:         err,
	}
}

// undelivered lists the serials a failed transfer would have moved away
// from the treasury.
func (c *Client) undelivered(serials []*big.Int, owners []string) []*big.Int {
	treasury := c.Treasury()
	left := make([]*big.Int, 0, len(serials))
	for index, serial := range serials {
		owner := strings.TrimSpace(owners[index])
		if owner == "" || owner == treasury {
			continue
		}
		left = append(left, serial)
	}
	return left
}

// TokenURI returns the metadata URI the serial was minted with.
func (c *Client) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	nft, err := c.lookup(ctx, tokenID)
	if err != nil {
		return "", err
	}
	metadata, err := mirror.DecodeMetadata(nft)
	if err != nil {
		return "", err
	}
	return string(metadata), nil
}

// OwnerOf returns the account currently holding the serial.
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (string, error) {
	nft, err := c.lookup(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if nft.Deleted {
		return "", fmt.Errorf("serial %d of %s has been burned", nft.SerialNumber, c.tokenID)
	}
	return nft.AccountID, nil
}

// Holdings lists the serials of this collection held by account.
func (c *Client) Holdings(ctx context.Context, account string) ([]*big.Int, error) {
	nfts, err := c.mirror.GetAccountNFTs(ctx, account, c.tokenID.String())
	if err != nil {
		return nil, err
	}
	ids := make([]*big.Int, 0, len(nfts))
	for _, nft := range nfts {
		if nft.Deleted {
			continue
		}
		ids = append(ids, big.NewInt(nft.SerialNumber))
	}
	return ids, nil
}

func (c *Client) lookup(ctx context.Context, tokenID *big.Int) (mirror.NFT, error) {
	if tokenID == nil || tokenID.Sign() <= 0 || !tokenID.IsInt64() {
		return mirror.NFT{}, fmt.Errorf("invalid serial number %v", tokenID)
	}
	return c.mirror.GetNFT(ctx, c.tokenID.String(), tokenID.Int64())
}

func (c *Client) mintGroup(ctx context.Context, uris []string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transaction, err := BuildMintTx(c.tokenID.String(), uris, c.memo)
	if err != nil {
		return nil, err
	}
	frozenTransaction, err := transaction.FreezeWith(c.hederaClient)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze mint transaction: %w", err)
	}
	frozenTransaction = frozenTransaction.Sign(c.supplyKey)

	response, err := hedera.TransactionExecute(frozenTransaction, c.hederaClient)
	if err != nil {
		return nil, submitFailure("hts mint", err)
	}
	receipt, err := c.confirm("mint", response)
	if err != nil {
		return nil, err
	}

	serials, err := serialsFromReceipt(receipt.SerialNumbers, len(uris))
	if err != nil {
		return nil, &mint.TransactionError{
			TxHash: response.TransactionID.String(),
			Reason: "mint receipt carried no usable serial numbers",
			Err:    err,
		}
	}

	c.logger.Info().
		Str("token_id", c.tokenID.String()).
		Str("transaction_id", response.TransactionID.String()).
		Ints64("serials", serials).
		Msg("minted serials")
	return serials, nil
}

func (c *Client) deliver(ctx context.Context, serials []int64, owners []string) error {
	transaction, count, err := BuildTransferTx(c.tokenID.String(), c.Treasury(), serials, owners, c.memo)
	if err != nil || count == 0 {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	frozenTransaction, err := transaction.FreezeWith(c.hederaClient)
	if err != nil {
		return fmt.Errorf("failed to freeze transfer transaction: %w", err)
	}
	response, err := hedera.TransactionExecute(frozenTransaction, c.hederaClient)
	if err != nil {
		return submitFailure("hts transfer", err)
	}
	if _, err := c.confirm("transfer", response); err != nil {
		return err
	}

	c.logger.Info().
		Str("token_id", c.tokenID.String()).
		Str("transaction_id", response.TransactionID.String()).
		Int("transfers", count).
		Msg("delivered serials to owners")
	return nil
}

func (c *Client) confirm(op string, response hedera.TransactionResponse) (hedera.TransactionReceipt, error) {
	transactionID := response.TransactionID.String()

	receipt, err := response.GetReceipt(c.hederaClient)
	if err != nil {
		var statusErr hedera.ErrHederaReceiptStatus
		if errors.As(err, &statusErr) {
			return receipt, &mint.TransactionError{
				TxHash: transactionID,
				Reason: fmt.Sprintf("%s failed with status %s", op, statusErr.Status.String()),
			}
		}
		// The transaction may still have reached consensus; resubmitting
		// could mint twice.
		return receipt, &shared.NetworkError{Op: "hts " + op + " receipt", Err: err}
	}
	if receipt.Status != hedera.StatusSuccess {
		return receipt, &mint.TransactionError{
			TxHash: transactionID,
			Reason: fmt.Sprintf("%s failed with status %s", op, receipt.Status.String()),
		}
	}
	return receipt, nil
}

// serialsFromReceipt takes the first expected serials; a receipt with fewer
// cannot be matched to the requested URIs.
func serialsFromReceipt(serials []int64, expected int) ([]int64, error) {
	if len(serials) == 0 {
		return nil, mint.ErrTokenIDUndeterminable
	}
	if len(serials) < expected {
		return nil, fmt.Errorf("%w: receipt has %d serials, expected %d", mint.ErrTokenIDUndeterminable, len(serials), expected)
	}
	return append([]int64(nil), serials[:expected]...), nil
}

func submitFailure(op string, err error) error {
	var precheck hedera.ErrHederaPreCheckStatus
	if errors.As(err, &precheck) {
		return &shared.NetworkError{
			Op:        op,
			Retryable: precheck.Status == hedera.StatusBusy || precheck.Status == hedera.StatusPlatformTransactionNotCreated,
			Err:       err,
		}
	}
	return &shared.NetworkError{Op: op, Retryable: true, Err: err}
}
