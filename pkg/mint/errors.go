package mint

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenIDUndeterminable is wrapped by a TransactionError when a
	// confirmed receipt carries no recognized transfer event.
	ErrTokenIDUndeterminable = errors.New("token id could not be determined from the transaction receipt")
	// ErrBatchLengthMismatch is returned before any network call when a batch
	// has different numbers of owners and URIs.
	ErrBatchLengthMismatch = errors.New("batch owners and URIs must have the same length")
)

// TransactionError reports a transaction that was submitted but did not
// produce a usable result.
type TransactionError struct {
	TxHash string
	Reason string
	// Events describes every log in the receipt as "address topic0".
	Events []string
	Err    error
}

func (e *TransactionError) Error() string {
	if e == nil {
		return "transaction failed"
	}
	message := fmt.Sprintf("transaction %s: %s", e.TxHash, e.Reason)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	if len(e.Events) > 0 {
		message += fmt.Sprintf(" (events: %v)", e.Events)
	}
	return message
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
