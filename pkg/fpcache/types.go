package fpcache

import (
	"strings"

	"github.com/rs/zerolog"
)

// Entry is one line of the cache log.
type Entry struct {
	Key     string `json:"key"`
	Address string `json:"cid"`
	URI     string `json:"uri"`
}

func (e Entry) valid() bool {
	return strings.TrimSpace(e.Key) != "" &&
		strings.TrimSpace(e.Address) != "" &&
		strings.TrimSpace(e.URI) != ""
}

// Options configures Open.
type Options struct {
	Logger *zerolog.Logger
	// Validate, when set, rejects entries whose address it does not accept.
	// Rejected lines are treated like malformed ones.
	Validate func(address string) bool
}
