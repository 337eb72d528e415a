package assets

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/envelope"
	"github.com/skeetzo/minty-fresh-go/pkg/fpcache"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
)

const (
	DefaultConcurrency   = 4
	DefaultUploadRetries = 3
	DefaultRetryInterval = 500 * time.Millisecond
)

// DefaultFields are asset fields recognized in every document.
var DefaultFields = []string{"image", "animation_url"}

// Source says where an asset's content comes from.
type Source int

const (
	SourceInline Source = iota + 1
	SourcePath
	SourceAddress
)

func (s Source) String() string {
	switch s {
	case SourceInline:
		return "inline"
	case SourcePath:
		return "path"
	case SourceAddress:
		return "address"
	default:
		return "unknown"
	}
}

// Asset is one file-bearing field of a metadata document.
type Asset struct {
	Name   string
	Source Source
	Data   []byte
	Path   string

	Address string
	URI     string

	Encrypt    bool
	Encrypted  bool
	WrappedKey []byte
}

// Store uploads content and returns its address.
type Store interface {
	Add(ctx context.Context, name string, content io.Reader) (ipfs.AddResult, error)
}

// Reader is implemented by stores that can stream back uploaded content.
// It lets an encrypted asset found in the fingerprint cache recover its
// wrapped key header; stores without it re-upload such assets instead.
type Reader interface {
	Cat(ctx context.Context, addressOrURI string) (io.ReadCloser, error)
}

// Cache remembers the address previously computed for a content key.
type Cache interface {
	Lookup(key string) (fpcache.Entry, bool)
	Record(key string, address string, uri string) error
}

// Encrypter seals asset content for the configured recipient.
type Encrypter interface {
	EncryptFile(ctx context.Context, path string) (envelope.Sealed, error)
	EncryptBytes(data []byte) (envelope.Sealed, error)
	PublicKeyHex() string
}

type Config struct {
	Store Store
	// Cache is optional; without it every asset is uploaded.
	Cache Cache
	// Encrypter is required only when assets are encrypted.
	Encrypter Encrypter
	// Fields replaces DefaultFields.
	Fields        []string
	Concurrency   int
	UploadRetries int
	RetryInterval time.Duration
	// WriteURIs stores ipfs:// URIs in the document instead of bare
	// content addresses.
	WriteURIs bool
	Logger    *zerolog.Logger
}

// ResolveOptions apply to a single Resolve call.
type ResolveOptions struct {
	// Encrypt encrypts every asset that is not already addressed.
	Encrypt bool
	// BaseDir anchors relative paths. Empty means the working directory.
	BaseDir string
}
