package minty

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/assets"
	"github.com/skeetzo/minty-fresh-go/pkg/envelope"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/metadata"
	"github.com/skeetzo/minty-fresh-go/pkg/schema"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

type Pipeline struct {
	store         Store
	resolver      *assets.Resolver
	schemas       *schema.Loader
	minter        Minter
	decrypter     Decrypter
	defaultSchema string
	defaultOwner  string
	autoPin       bool
	logger        *zerolog.Logger
}

// New creates a pipeline from already constructed components.
func New(config Config) (*Pipeline, error) {
	if config.Store == nil {
		return nil, &shared.ConfigurationError{Setting: "ipfs", Message: "content store is required"}
	}
	if config.Resolver == nil {
		return nil, &shared.ConfigurationError{Setting: "assets", Message: "asset resolver is required"}
	}
	if config.Schemas == nil {
		return nil, &shared.ConfigurationError{Setting: "schemas", Message: "schema loader is required"}
	}
	if config.Minter == nil {
		return nil, &shared.ConfigurationError{Setting: "ledger", Message: "minter is required"}
	}

	return &Pipeline{
		store:         config.Store,
		resolver:      config.Resolver,
		schemas:       config.Schemas,
		minter:        config.Minter,
		decrypter:     config.Decrypter,
		defaultSchema: strings.TrimSpace(config.DefaultSchema),
		defaultOwner:  strings.TrimSpace(config.DefaultOwner),
		autoPin:       config.AutoPin,
		logger:        shared.LoggerOrNop(config.Logger),
	}, nil
}

// CreateNFTFromAssetFile mints a token whose image is the file at path.
// fields may be nil; an image field already present in it is replaced.
func (p *Pipeline) CreateNFTFromAssetFile(ctx context.Context, path string, fields *metadata.Document, options CreateOptions) (NFT, error) {
	if strings.TrimSpace(path) == "" {
		return NFT{}, fmt.Errorf("asset path is required")
	}
	doc := cloneOrNew(fields)
	doc.Set("image", path)
	return p.CreateNFT(ctx, doc, options)
}

// CreateNFTFromAssetData mints a token whose image is data.
func (p *Pipeline) CreateNFTFromAssetData(ctx context.Context, data []byte, fields *metadata.Document, options CreateOptions) (NFT, error) {
	if len(data) == 0 {
		return NFT{}, fmt.Errorf("asset data is empty")
	}
	doc := cloneOrNew(fields)
	doc.Set("image", data)
	return p.CreateNFT(ctx, doc, options)
}

// CreateNFT runs the full pipeline for doc and mints one token. doc itself
// is not modified; the filled document is returned in NFT.Metadata.
func (p *Pipeline) CreateNFT(ctx context.Context, doc *metadata.Document, options CreateOptions) (NFT, error) {
	owner := p.owner(options.Owner)

	nft, err := p.prepare(ctx, doc, options)
	if err != nil {
		return NFT{}, err
	}

	tokenID, err := p.minter.Mint(ctx, owner, nft.MetadataURI)
	if err != nil {
		return NFT{}, fmt.Errorf("minting %s: %w", nft.MetadataURI, err)
	}
	nft.TokenID = tokenID
	nft.Owner = owner

	p.logger.Info().
		Str("token_id", tokenID.String()).
		Str("owner", owner).
		Str("metadata", nft.MetadataURI).
		Msg("created nft")
	return nft, nil
}

// CreateNFTBatch prepares every item and then mints them together in one
// batch call. Nothing is minted unless every item prepared successfully.
func (p *Pipeline) CreateNFTBatch(ctx context.Context, items []BatchItem, options CreateOptions) ([]NFT, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}

	nfts := make([]NFT, 0, len(items))
	owners := make([]string, 0, len(items))
	uris := make([]string, 0, len(items))
	for index, item := range items {
		nft, err := p.prepare(ctx, item.Metadata, options)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", index, err)
		}
		owner := strings.TrimSpace(item.Owner)
		if owner == "" {
			owner = p.owner(options.Owner)
		}
		nft.Owner = owner

		nfts = append(nfts, nft)
		owners = append(owners, owner)
		uris = append(uris, nft.MetadataURI)
	}

	tokenIDs, err := p.minter.MintBatch(ctx, owners, uris)
	if err != nil {
		return nil, fmt.Errorf("minting batch of %d: %w", len(items), err)
	}
	for index := range nfts {
		nfts[index].TokenID = tokenIDs[index]
	}

	p.logger.Info().Int("count", len(nfts)).Msg("created nft batch")
	return nfts, nil
}

// GetNFT reads the token's metadata URI and owner from the ledger and
// fetches the metadata document from the store.
func (p *Pipeline) GetNFT(ctx context.Context, tokenID *big.Int) (NFT, error) {
	uri, err := p.minter.TokenURI(ctx, tokenID)
	if err != nil {
		return NFT{}, fmt.Errorf("reading token %v uri: %w", tokenID, err)
	}
	owner, err := p.minter.OwnerOf(ctx, tokenID)
	if err != nil {
		return NFT{}, fmt.Errorf("reading token %v owner: %w", tokenID, err)
	}

	address := ipfs.AddressFromURI(uri)
	if !ipfs.IsContentAddress(address) {
		return NFT{}, fmt.Errorf("token %v metadata uri %q is not a content address", tokenID, uri)
	}
	data, err := p.store.Get(ctx, address)
	if err != nil {
		return NFT{}, fmt.Errorf("fetching token %v metadata: %w", tokenID, err)
	}
	doc, err := metadata.Parse(data)
	if err != nil {
		return NFT{}, fmt.Errorf("token %v metadata: %w", tokenID, err)
	}

	encrypted := doc.String("encryption") != ""
	return NFT{
		TokenID:         tokenID,
		Owner:           owner,
		MetadataAddress: address,
		MetadataURI:     ipfs.URIFromAddress(address),
		GatewayURL:      p.store.GatewayURLFor(address),
		Metadata:        doc,
		Assets:          addressedAssets(doc, encrypted),
		Encrypted:       encrypted,
	}, nil
}

// PinTokenData pins the token's metadata document and every content
// address it references.
func (p *Pipeline) PinTokenData(ctx context.Context, tokenID *big.Int) error {
	nft, err := p.GetNFT(ctx, tokenID)
	if err != nil {
		return err
	}
	return p.pin(ctx, nft)
}

// FetchAsset returns the content at addressOrURI, decrypting it when
// decrypt is set.
func (p *Pipeline) FetchAsset(ctx context.Context, addressOrURI string, decrypt bool) ([]byte, error) {
	if !ipfs.IsContentAddress(addressOrURI) {
		return nil, fmt.Errorf("%q is not a content address", addressOrURI)
	}
	data, err := p.store.Get(ctx, addressOrURI)
	if err != nil {
		return nil, err
	}
	if !decrypt {
		return data, nil
	}
	if p.decrypter == nil {
		return nil, envelope.ErrMissingPrivateKey
	}
	plaintext, err := p.decrypter.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", ipfs.AddressFromURI(addressOrURI), err)
	}
	return plaintext, nil
}

// prepare takes doc from raw fields to an uploaded, validated document.
func (p *Pipeline) prepare(ctx context.Context, doc *metadata.Document, options CreateOptions) (NFT, error) {
	if doc == nil {
		return NFT{}, fmt.Errorf("metadata document is required")
	}

	schemaName := strings.TrimSpace(options.Schema)
	if schemaName == "" {
		schemaName = p.defaultSchema
	}
	template, err := p.schemas.Load(schemaName)
	if err != nil {
		return NFT{}, err
	}

	filled := doc.Clone()
	schema.ApplyDefaults(filled, template)

	resolved, err := p.resolver.Resolve(filled, template, assets.ResolveOptions{
		Encrypt: options.Encrypt,
		BaseDir: options.BaseDir,
	})
	if err != nil {
		return NFT{}, err
	}
	if err := p.resolver.UploadAll(ctx, filled, resolved); err != nil {
		return NFT{}, err
	}

	encrypted := false
	for _, asset := range resolved {
		encrypted = encrypted || asset.Encrypted
	}
	if encrypted && strings.TrimSpace(filled.String("encryption")) == "" {
		filled.Set("encryption", envelope.Scheme)
	}

	if err := schema.Validate(filled, template); err != nil {
		return NFT{}, err
	}

	body, err := json.Marshal(filled)
	if err != nil {
		return NFT{}, fmt.Errorf("encoding metadata: %w", err)
	}
	result, err := p.store.AddBytes(ctx, MetadataFileName, body)
	if err != nil {
		return NFT{}, fmt.Errorf("uploading metadata: %w", err)
	}

	nft := NFT{
		MetadataAddress: result.Address,
		MetadataURI:     result.URI,
		GatewayURL:      p.store.GatewayURLFor(result.Address),
		Metadata:        filled,
		Assets:          resolved,
		Schema:          template.Name,
		SchemaAmbiguous: template.Ambiguous,
		Encrypted:       encrypted,
	}

	if options.Pin || p.autoPin {
		if err := p.pin(ctx, nft); err != nil {
			return NFT{}, err
		}
		nft.Pinned = true
	}
	return nft, nil
}

func (p *Pipeline) pin(ctx context.Context, nft NFT) error {
	targets := []string{nft.MetadataAddress}
	for _, asset := range nft.Assets {
		if asset.Address != "" {
			targets = append(targets, asset.Address)
		}
	}

	seen := map[string]bool{}
	for _, target := range targets {
		if seen[target] {
			continue
		}
		seen[target] = true
		if err := p.store.Pin(ctx, target); err != nil {
			return fmt.Errorf("pinning %s: %w", target, err)
		}
	}
	return nil
}

func (p *Pipeline) owner(requested string) string {
	if owner := strings.TrimSpace(requested); owner != "" {
		return owner
	}
	return p.defaultOwner
}

func cloneOrNew(doc *metadata.Document) *metadata.Document {
	if doc == nil {
		return metadata.New()
	}
	return doc.Clone()
}

// addressedAssets lists the top-level fields of doc that hold content
// addresses, in document order.
func addressedAssets(doc *metadata.Document, encrypted bool) []assets.Asset {
	found := make([]assets.Asset, 0)
	for _, key := range doc.Keys() {
		value := strings.TrimSpace(doc.String(key))
		if value == "" || !ipfs.IsContentAddress(value) {
			continue
		}
		address := ipfs.AddressFromURI(value)
		found = append(found, assets.Asset{
			Name:      key,
			Source:    assets.SourceAddress,
			Address:   address,
			URI:       ipfs.URIFromAddress(address),
			Encrypted: encrypted,
		})
	}
	return found
}
