package shared

import (
	"context"
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or inconsistent setting. Retrying
// without changing the configuration will fail the same way.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "configuration error"
	}
	if e.Setting == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Message)
}

// NetworkError wraps a failed RPC against the store daemon or the ledger.
type NetworkError struct {
	Op        string
	Status    int
	Retryable bool
	Err       error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "network error"
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient network failure. Context
// cancellation and deadline expiry are never retryable, and neither is a
// failure whose error reports PartiallyApplied.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var partial interface{ PartiallyApplied() bool }
	if errors.As(err, &partial) && partial.PartiallyApplied() {
		return false
	}
	var networkErr *NetworkError
	if errors.As(err, &networkErr) {
		return networkErr.Retryable
	}
	return false
}
