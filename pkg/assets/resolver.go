package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skeetzo/minty-fresh-go/pkg/envelope"
	"github.com/skeetzo/minty-fresh-go/pkg/fpcache"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/metadata"
	"github.com/skeetzo/minty-fresh-go/pkg/schema"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

type Resolver struct {
	store         Store
	cache         Cache
	encrypter     Encrypter
	fields        []string
	concurrency   int
	uploadRetries int
	retryInterval time.Duration
	writeURIs     bool
	logger        *zerolog.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(config Config) (*Resolver, error) {
	if config.Store == nil {
		return nil, &shared.ConfigurationError{Setting: "ipfs", Message: "content store is required"}
	}

	fields := config.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	uploadRetries := config.UploadRetries
	if uploadRetries < 0 {
		uploadRetries = 0
	}
	retryInterval := config.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}

	return &Resolver{
		store:         config.Store,
		cache:         config.Cache,
		encrypter:     config.Encrypter,
		fields:        append([]string(nil), fields...),
		concurrency:   concurrency,
		uploadRetries: uploadRetries,
		retryInterval: retryInterval,
		writeURIs:     config.WriteURIs,
		logger:        shared.LoggerOrNop(config.Logger),
	}, nil
}

// KnownFields returns the base asset fields followed by the template's
// extensions, without duplicates.
func (r *Resolver) KnownFields(template *schema.Template) []string {
	seen := map[string]bool{}
	fields := make([]string, 0, len(r.fields))
	add := func(field string) {
		if field = strings.TrimSpace(field); field != "" && !seen[field] {
			seen[field] = true
			fields = append(fields, field)
		}
	}
	for _, field := range r.fields {
		add(field)
	}
	if template != nil {
		for _, field := range template.Assets {
			add(field)
		}
	}
	return fields
}

// Resolve classifies the known asset fields present in doc. Blank strings
// and values of other types are left for schema validation.
func (r *Resolver) Resolve(doc *metadata.Document, template *schema.Template, options ResolveOptions) ([]Asset, error) {
	encrypt := options.Encrypt || (template != nil && template.Encrypt)
	if encrypt && r.encrypter == nil {
		return nil, &shared.ConfigurationError{Setting: "assets.key_dir", Message: "an encryption key is required to encrypt assets"}
	}

	assets := make([]Asset, 0)
	for _, field := range r.KnownFields(template) {
		value, ok := doc.Get(field)
		if !ok {
			continue
		}

		switch typed := value.(type) {
		case []byte:
			assets = append(assets, Asset{Name: field, Source: SourceInline, Data: typed, Encrypt: encrypt})
		case string:
			trimmed := strings.TrimSpace(typed)
			if trimmed == "" {
				continue
			}
			if ipfs.IsContentAddress(trimmed) {
				address := ipfs.AddressFromURI(trimmed)
				assets = append(assets, Asset{
					Name:    field,
					Source:  SourceAddress,
					Address: address,
					URI:     ipfs.URIFromAddress(address),
				})
				continue
			}

			path := trimmed
			if options.BaseDir != "" && !filepath.IsAbs(path) {
				path = filepath.Join(options.BaseDir, path)
			}
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("asset %s: %w", field, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("asset %s: %s is a directory", field, path)
			}
			assets = append(assets, Asset{Name: field, Source: SourcePath, Path: path, Encrypt: encrypt})
		}
	}
	return assets, nil
}

// UploadAll uploads every asset that is not already addressed and then sets
// each asset's field in doc to its content address. assets is updated in
// place. If any upload fails, neither doc nor assets is modified.
func (r *Resolver) UploadAll(ctx context.Context, doc *metadata.Document, assets []Asset) error {
	resolved := make([]Asset, len(assets))
	copy(resolved, assets)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for index := range resolved {
		if resolved[index].Source == SourceAddress {
			continue
		}
		asset := &resolved[index]
		group.Go(func() error {
			if err := r.upload(groupCtx, asset); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Name, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, asset := range resolved {
		if r.writeURIs {
			doc.Set(asset.Name, asset.URI)
		} else {
			doc.Set(asset.Name, asset.Address)
		}
	}
	copy(assets, resolved)
	return nil
}

func (r *Resolver) upload(ctx context.Context, asset *Asset) error {
	key, err := r.cacheKey(asset)
	if err != nil {
		return err
	}

	if r.cache != nil {
		if entry, ok := r.cache.Lookup(key); ok {
			if r.reuse(ctx, asset, entry) {
				r.logger.Debug().
					Str("field", asset.Name).
					Str("cid", entry.Address).
					Msg("asset found in fingerprint cache")
				return nil
			}
		}
	}

	name, open, cleanup, err := r.content(ctx, asset)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := r.addWithRetry(ctx, name, open)
	if err != nil {
		return err
	}

	asset.Address = result.Address
	asset.URI = result.URI
	asset.Encrypted = asset.Encrypt

	if r.cache != nil {
		if err := r.cache.Record(key, result.Address, result.URI); err != nil {
			r.logger.Warn().Err(err).Str("field", asset.Name).Msg("failed to record asset in fingerprint cache")
		}
	}
	r.logger.Info().
		Str("field", asset.Name).
		Str("source", asset.Source.String()).
		Str("cid", result.Address).
		Bool("encrypted", asset.Encrypted).
		Msg("uploaded asset")
	return nil
}

// reuse fills asset from a cache entry. Encrypted entries are only reused
// when their wrapped key header can be read back from the store.
func (r *Resolver) reuse(ctx context.Context, asset *Asset, entry fpcache.Entry) bool {
	var header []byte
	if asset.Encrypt {
		reader, ok := r.store.(Reader)
		if !ok {
			return false
		}
		var err error
		header, err = readHeader(ctx, reader, entry.Address)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("field", asset.Name).
				Str("cid", entry.Address).
				Msg("cannot read wrapped key of cached asset, uploading again")
			return false
		}
	}

	asset.Address = entry.Address
	asset.URI = ipfs.URIFromAddress(entry.Address)
	asset.Encrypted = asset.Encrypt
	asset.WrappedKey = header
	return true
}

func readHeader(ctx context.Context, reader Reader, address string) ([]byte, error) {
	content, err := reader.Cat(ctx, address)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	header := make([]byte, envelope.HeaderSize)
	if _, err := io.ReadFull(content, header); err != nil {
		return nil, fmt.Errorf("reading wrapped key header: %w", err)
	}
	return header, nil
}

func (r *Resolver) cacheKey(asset *Asset) (string, error) {
	var key string
	switch asset.Source {
	case SourceInline:
		key = fpcache.KeyForBytes(asset.Data)
	case SourcePath:
		fileKey, err := fpcache.KeyForFile(asset.Path)
		if err != nil {
			return "", err
		}
		key = fileKey
	default:
		return "", fmt.Errorf("unsupported asset source %s", asset.Source)
	}
	if asset.Encrypt {
		key = fpcache.NamespacedKey("enc:"+r.encrypter.PublicKeyHex(), key)
	}
	return key, nil
}

// content returns the upload name and a function that opens a fresh reader
// for every attempt.
func (r *Resolver) content(ctx context.Context, asset *Asset) (string, func() (io.ReadCloser, error), func(), error) {
	name := asset.Name
	if asset.Source == SourcePath {
		name = filepath.Base(asset.Path)
	}
	noCleanup := func() {}

	if !asset.Encrypt {
		if asset.Source == SourceInline {
			data := asset.Data
			return name, func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil }, noCleanup, nil
		}
		path := asset.Path
		return name, func() (io.ReadCloser, error) { return os.Open(path) }, noCleanup, nil
	}

	var sealed envelope.Sealed
	var err error
	if asset.Source == SourceInline {
		sealed, err = r.encrypter.EncryptBytes(asset.Data)
	} else {
		sealed, err = r.encrypter.EncryptFile(ctx, asset.Path)
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("encrypting: %w", err)
	}
	asset.WrappedKey = sealed.WrappedKey

	cleanup := func() {
		if err := sealed.Cleanup(); err != nil {
			r.logger.Warn().Err(err).Str("path", sealed.Path).Msg("failed to remove encrypted output")
		}
	}
	return name + envelope.EncryptedSuffix, sealed.Open, cleanup, nil
}

func (r *Resolver) addWithRetry(ctx context.Context, name string, open func() (io.ReadCloser, error)) (ipfs.AddResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryInterval

	operation := func() (ipfs.AddResult, error) {
		reader, err := open()
		if err != nil {
			return ipfs.AddResult{}, backoff.Permanent(err)
		}
		defer reader.Close()

		result, err := r.store.Add(ctx, name, reader)
		if err != nil && !shared.IsRetryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn().Err(err).Str("name", name).Dur("retry_in", wait).Msg("upload failed, retrying")
	}

	return backoff.RetryNotifyWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.uploadRetries)), ctx),
		notify,
	)
}
