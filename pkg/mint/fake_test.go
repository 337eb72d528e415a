package mint

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testABI = `[
  {"type":"function","name":"mintToken","stateMutability":"nonpayable",
   "inputs":[{"name":"owner","type":"address"},{"name":"metadataURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"mintBatch","stateMutability":"nonpayable",
   "inputs":[{"name":"owners","type":"address[]"},{"name":"metadataURIs","type":"string[]"}],
   "outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"data","type":"bytes"}],
   "outputs":[]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}]}
]`

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	otherAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	ownerA       = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	ownerB       = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

func testDeployment() []byte {
	return []byte(`{"network":"localhost","contract":{"name":"Minty","address":"` + testContract.Hex() + `","abi":` + testABI + `}}`)
}

// nodeError mimics a JSON-RPC error returned by the node.
type nodeError struct {
	message string
}

func (e nodeError) Error() string  { return e.message }
func (e nodeError) ErrorCode() int { return 3 }

type fakeBackend struct {
	mutex sync.Mutex

	chainID      *big.Int
	gasEstimate  uint64
	estimateErr  error
	pendingPolls int
	receiptFor   func(tx *types.Transaction) *types.Receipt
	callOutput   func(call ethereum.CallMsg) ([]byte, error)

	calls map[string]int
	sent  []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:     big.NewInt(31337),
		gasEstimate: 123456,
		calls:       map[string]int{},
	}
}

func (b *fakeBackend) record(name string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls[name]++
}

func (b *fakeBackend) totalCalls() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	total := 0
	for _, count := range b.calls {
		total += count
	}
	return total
}

func (b *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.record("CallContract")
	return b.callOutput(call)
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.record("PendingNonceAt")
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b.record("SuggestGasPrice")
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	b.record("EstimateGas")
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return b.gasEstimate, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.record("SendTransaction")
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.record("TransactionReceipt")
	b.mutex.Lock()
	if b.pendingPolls > 0 {
		b.pendingPolls--
		b.mutex.Unlock()
		return nil, ethereum.NotFound
	}
	var tx *types.Transaction
	for _, candidate := range b.sent {
		if candidate.Hash() == txHash {
			tx = candidate
		}
	}
	b.mutex.Unlock()

	if tx == nil || b.receiptFor == nil {
		return nil, ethereum.NotFound
	}
	receipt := b.receiptFor(tx)
	receipt.TxHash = txHash
	if receipt.BlockNumber == nil {
		receipt.BlockNumber = big.NewInt(1)
	}
	return receipt, nil
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	b.record("ChainID")
	return b.chainID, nil
}

func newTestSigner(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key, common.Bytes2Hex(crypto.FromECDSA(key))
}

func successReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, Logs: logs}
}

func erc721TransferLog(contract common.Address, to string, id int64) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			transferTopic,
			{},
			common.BytesToHash(common.HexToAddress(to).Bytes()),
			common.BigToHash(big.NewInt(id)),
		},
	}
}

func erc20TransferLog(contract common.Address, to string, amount int64) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			transferTopic,
			{},
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: common.BigToHash(big.NewInt(amount)).Bytes(),
	}
}

func transferSingleLog(t *testing.T, contract common.Address, to string, id int64) *types.Log {
	t.Helper()

	data, err := transferSingleData.Pack(big.NewInt(id), big.NewInt(1))
	if err != nil {
		t.Fatalf("failed to pack TransferSingle data: %v", err)
	}
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			transferSingleTopic,
			common.BytesToHash(otherAddress.Bytes()),
			{},
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: data,
	}
}

func transferBatchLog(t *testing.T, contract common.Address, to string, ids ...int64) *types.Log {
	t.Helper()

	tokenIDs := make([]*big.Int, 0, len(ids))
	amounts := make([]*big.Int, 0, len(ids))
	for _, id := range ids {
		tokenIDs = append(tokenIDs, big.NewInt(id))
		amounts = append(amounts, big.NewInt(1))
	}
	data, err := transferBatchData.Pack(tokenIDs, amounts)
	if err != nil {
		t.Fatalf("failed to pack TransferBatch data: %v", err)
	}
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			transferBatchTopic,
			common.BytesToHash(otherAddress.Bytes()),
			{},
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: data,
	}
}
