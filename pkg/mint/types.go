package mint

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const (
	DefaultMintMethod      = "mintToken"
	DefaultConfirmInterval = 2 * time.Second
	DefaultConfirmAttempts = 90
)

// Backend is the subset of the JSON-RPC API the client needs.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

type Config struct {
	// Backend is used as is when set; otherwise RPCURL is dialed.
	Backend Backend
	RPCURL  string
	// PrivateKey is the hex encoded signing key. Read-only calls work
	// without it.
	PrivateKey string
	// Interface holds a deployment record, a compiled artifact or a raw ABI
	// array. InterfacePath is read when Interface is empty.
	Interface     []byte
	InterfacePath string
	// ContractAddress overrides the address in the deployment record.
	ContractAddress string
	MintMethod      string
	// BatchMintMethod is optional; MintBatch fails without it.
	BatchMintMethod string
	// StripURIPrefix removes ipfs:// from URIs for contracts that add it
	// back through their base URI.
	StripURIPrefix  bool
	ConfirmInterval time.Duration
	ConfirmAttempts int
	Logger          *zerolog.Logger
}

// Confirmation describes a mined transaction.
type Confirmation struct {
	TxHash      string
	BlockNumber *big.Int
	GasUsed     uint64
	Event       string
	TokenIDs    []*big.Int
}
