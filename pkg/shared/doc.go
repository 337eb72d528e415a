// Package shared holds the plumbing every minty package leans on: network
// normalization and Hedera client construction, operator credentials from the
// environment, the YAML pipeline configuration, the zerolog logger factory and
// the error taxonomy shared by the store, ledger and validation layers.
//
// # Environment Variables
//
// Configuration files are optional. Any value may be supplied (or overridden)
// through environment variables prefixed with MINTY_, and Hedera operator
// credentials are read from the usual HEDERA_* names. A .env file in the
// working directory or any parent directory is loaded once, never overriding
// variables that are already set.
//
// # Errors
//
// ConfigurationError marks settings that are missing or inconsistent and will
// not fix themselves on retry. NetworkError wraps store and ledger RPC failures;
// IsRetryable reports whether the caller may try again.
package shared
