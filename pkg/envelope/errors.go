package envelope

import (
	"errors"
	"fmt"
)

// ErrMissingPrivateKey is returned by every decrypt call on an engine that
// only holds the public key.
var ErrMissingPrivateKey = errors.New("envelope: decryption requires the private key")

// FramingError reports an encrypted blob whose header cannot be parsed.
type FramingError struct {
	Length  int
	Minimum int
	Message string
}

func (e *FramingError) Error() string {
	if e == nil {
		return "envelope: malformed encrypted blob"
	}
	if e.Minimum > 0 {
		return fmt.Sprintf("envelope: malformed encrypted blob: %s (got %d bytes, need at least %d)", e.Message, e.Length, e.Minimum)
	}
	return "envelope: malformed encrypted blob: " + e.Message
}
