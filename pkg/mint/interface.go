package mint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

// Interface is a contract ABI and, when the source recorded one, its
// deployed address.
type Interface struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
}

type deploymentRecord struct {
	Network  string `json:"network"`
	Contract *struct {
		Name    string          `json:"name"`
		Address string          `json:"address"`
		ABI     json.RawMessage `json:"abi"`
	} `json:"contract"`
	ContractName string          `json:"contractName"`
	Address      string          `json:"address"`
	ABI          json.RawMessage `json:"abi"`
}

// ParseInterface reads a deployment record ({"contract":{"address","abi"}}),
// a compiled artifact ({"abi":[...]}) or a raw ABI array.
func ParseInterface(data []byte) (Interface, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Interface{}, fmt.Errorf("contract interface is empty")
	}

	if trimmed[0] == '[' {
		parsed, err := abi.JSON(bytes.NewReader(trimmed))
		if err != nil {
			return Interface{}, fmt.Errorf("parsing contract ABI: %w", err)
		}
		return Interface{ABI: parsed}, nil
	}

	var record deploymentRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return Interface{}, fmt.Errorf("parsing contract interface: %w", err)
	}

	name, address, rawABI := record.ContractName, record.Address, record.ABI
	if record.Contract != nil && len(record.Contract.ABI) > 0 {
		name, address, rawABI = record.Contract.Name, record.Contract.Address, record.Contract.ABI
	}
	if len(bytes.TrimSpace(rawABI)) == 0 {
		return Interface{}, fmt.Errorf("contract interface does not contain an ABI")
	}

	parsed, err := abi.JSON(bytes.NewReader(rawABI))
	if err != nil {
		return Interface{}, fmt.Errorf("parsing contract ABI: %w", err)
	}

	contract := Interface{Name: name, ABI: parsed}
	if strings.TrimSpace(address) != "" {
		if !common.IsHexAddress(address) {
			return Interface{}, fmt.Errorf("invalid contract address %q in deployment record", address)
		}
		contract.Address = common.HexToAddress(address)
	}
	return contract, nil
}

// resolveEntrypoint finds the method named name whose inputs are exactly
// the given types.
func resolveEntrypoint(contractABI abi.ABI, setting string, name string, inputs ...string) (abi.Method, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return abi.Method{}, &shared.ConfigurationError{Setting: setting, Message: "is required"}
	}

	if method, ok := findMethod(contractABI, name, inputs...); ok {
		return method, nil
	}
	if _, exists := findMethod(contractABI, name); exists {
		return abi.Method{}, &shared.ConfigurationError{
			Setting: setting,
			Message: fmt.Sprintf("%q does not accept (%s)", name, strings.Join(inputs, ",")),
		}
	}
	return abi.Method{}, &shared.ConfigurationError{
		Setting: setting,
		Message: fmt.Sprintf("%q is not a method of the contract", name),
	}
}

// findMethod looks a method up by its Solidity name, resolving overloads by
// input types. With no input types the first overload matches.
func findMethod(contractABI abi.ABI, name string, inputs ...string) (abi.Method, bool) {
	for _, method := range contractABI.Methods {
		if method.RawName != name {
			continue
		}
		if len(inputs) == 0 {
			return method, true
		}
		if len(method.Inputs) != len(inputs) {
			continue
		}
		matches := true
		for index, input := range method.Inputs {
			if input.Type.String() != inputs[index] {
				matches = false
				break
			}
		}
		if matches {
			return method, true
		}
	}
	return abi.Method{}, false
}
