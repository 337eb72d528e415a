package mint

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	transferTopic       = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	transferSingleTopic = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))
	transferBatchTopic  = crypto.Keccak256Hash([]byte("TransferBatch(address,address,address,uint256[],uint256[])"))

	uint256Type, _      = abi.NewType("uint256", "", nil)
	uint256ArrayType, _ = abi.NewType("uint256[]", "", nil)

	transferSingleData = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}}
	transferBatchData  = abi.Arguments{{Type: uint256ArrayType}, {Type: uint256ArrayType}}
)

// eventShape recognizes one kind of transfer log and extracts token ids
// from it.
type eventShape struct {
	name    string
	topic   common.Hash
	extract func(log *types.Log) ([]*big.Int, error)
}

// receiptShapes are tried in order; the first shape with a matching log
// wins.
var receiptShapes = []eventShape{
	{name: "ERC721.Transfer", topic: transferTopic, extract: extractTransfer},
	{name: "ERC1155.TransferSingle", topic: transferSingleTopic, extract: extractTransferSingle},
	{name: "ERC1155.TransferBatch", topic: transferBatchTopic, extract: extractTransferBatch},
}

// extractTokenIDs returns the ids from the first recognized shape among logs
// emitted by contract.
func extractTokenIDs(receipt *types.Receipt, contract common.Address) ([]*big.Int, string, error) {
	for _, shape := range receiptShapes {
		ids := make([]*big.Int, 0)
		for _, log := range receipt.Logs {
			if log == nil || log.Address != contract || len(log.Topics) == 0 || log.Topics[0] != shape.topic {
				continue
			}
			extracted, err := shape.extract(log)
			if err != nil {
				return nil, shape.name, fmt.Errorf("decoding %s log %d: %w", shape.name, log.Index, err)
			}
			ids = append(ids, extracted...)
		}
		if len(ids) > 0 {
			return ids, shape.name, nil
		}
	}
	return nil, "", ErrTokenIDUndeterminable
}

// extractTransfer reads the indexed token id of an ERC-721 Transfer. ERC-20
// transfers share the signature but carry three topics and are skipped.
func extractTransfer(log *types.Log) ([]*big.Int, error) {
	if len(log.Topics) != 4 {
		return nil, nil
	}
	return []*big.Int{new(big.Int).SetBytes(log.Topics[3].Bytes())}, nil
}

func extractTransferSingle(log *types.Log) ([]*big.Int, error) {
	values, err := transferSingleData.Unpack(log.Data)
	if err != nil {
		return nil, err
	}
	id, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected id type %T", values[0])
	}
	return []*big.Int{id}, nil
}

func extractTransferBatch(log *types.Log) ([]*big.Int, error) {
	values, err := transferBatchData.Unpack(log.Data)
	if err != nil {
		return nil, err
	}
	ids, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected ids type %T", values[0])
	}
	return ids, nil
}

func describeLogs(receipt *types.Receipt) []string {
	if receipt == nil {
		return nil
	}
	events := make([]string, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if log == nil {
			continue
		}
		topic := "<anonymous>"
		if len(log.Topics) > 0 {
			topic = log.Topics[0].Hex()
		}
		events = append(events, log.Address.Hex()+" "+topic)
	}
	return events
}
