package hts

import (
	"fmt"
	"math/big"
	"strings"
)

// PartialMintError reports a batch that failed after some serials were
// already minted. Minted lists them in input order. Undelivered is the
// subset still held by the treasury because the transfer to its owner
// failed. Resubmitting the batch would mint the listed serials again, so
// the error is never retryable.
type PartialMintError struct {
	TokenID     string
	Minted      []*big.Int
	Undelivered []*big.Int
	Err         error
}

func (e *PartialMintError) Error() string {
	if e == nil {
		return "batch mint partially applied"
	}
	message := fmt.Sprintf("batch mint of %s stopped after minting serials [%s]", e.TokenID, joinSerials(e.Minted))
	if len(e.Undelivered) > 0 {
		message += fmt.Sprintf(", serials [%s] remain with the treasury", joinSerials(e.Undelivered))
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *PartialMintError) Unwrap() error {
	return e.Err
}

// PartiallyApplied marks the failure as having already changed the ledger.
func (e *PartialMintError) PartiallyApplied() bool {
	return true
}

func joinSerials(serials []*big.Int) string {
	parts := make([]string, 0, len(serials))
	for _, serial := range serials {
		parts = append(parts, serial.String())
	}
	return strings.Join(parts, " ")
}
