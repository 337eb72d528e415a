package minty

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/assets"
	"github.com/skeetzo/minty-fresh-go/pkg/hts"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/metadata"
	"github.com/skeetzo/minty-fresh-go/pkg/mint"
	"github.com/skeetzo/minty-fresh-go/pkg/schema"
)

// MetadataFileName is the upload name of every metadata document.
const MetadataFileName = "metadata.json"

// Minter records metadata URIs on a ledger.
type Minter interface {
	Mint(ctx context.Context, owner string, uri string) (*big.Int, error)
	MintBatch(ctx context.Context, owners []string, uris []string) ([]*big.Int, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (string, error)
}

var (
	_ Minter = (*mint.Client)(nil)
	_ Minter = (*hts.Client)(nil)
)

// Store is the part of the content store client the pipeline uses.
type Store interface {
	assets.Store
	AddBytes(ctx context.Context, name string, data []byte) (ipfs.AddResult, error)
	Get(ctx context.Context, addressOrURI string) ([]byte, error)
	Pin(ctx context.Context, addressOrURI string) error
	GatewayURLFor(addressOrURI string) string
}

var (
	_ Store         = (*ipfs.Client)(nil)
	_ assets.Reader = (*ipfs.Client)(nil)
)

type Decrypter interface {
	Decrypt(blob []byte) ([]byte, error)
}

type Config struct {
	Store    Store
	Resolver *assets.Resolver
	Schemas  *schema.Loader
	Minter   Minter
	// Decrypter is optional; FetchAsset fails closed without it.
	Decrypter Decrypter
	// DefaultSchema is used when CreateOptions.Schema is empty.
	DefaultSchema string
	// DefaultOwner is used when CreateOptions.Owner is empty.
	DefaultOwner string
	// AutoPin pins every created document and its assets.
	AutoPin bool
	Logger  *zerolog.Logger
}

type CreateOptions struct {
	Schema string
	Owner  string
	// Encrypt encrypts every uploaded asset, in addition to templates that
	// ask for it.
	Encrypt bool
	Pin     bool
	// BaseDir anchors relative asset paths.
	BaseDir string
}

// BatchItem is one token of a CreateNFTBatch call. An empty Owner falls
// back to the options' owner.
type BatchItem struct {
	Metadata *metadata.Document
	Owner    string
}

// NFT describes a minted (or fetched) token.
type NFT struct {
	TokenID         *big.Int
	Owner           string
	MetadataAddress string
	MetadataURI     string
	GatewayURL      string
	Metadata        *metadata.Document
	Assets          []assets.Asset
	Schema          string
	// SchemaAmbiguous is set when no template matched the requested name
	// and a fallback was used.
	SchemaAmbiguous bool
	Encrypted       bool
	Pinned          bool
}
