package minty

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/assets"
	"github.com/skeetzo/minty-fresh-go/pkg/envelope"
	"github.com/skeetzo/minty-fresh-go/pkg/fpcache"
	"github.com/skeetzo/minty-fresh-go/pkg/hts"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/mint"
	"github.com/skeetzo/minty-fresh-go/pkg/schema"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

// NewFromConfig builds every component from config. The encryption engine
// is loaded from the key directory when one is present and is required
// when assets.encrypt is set. For the hedera backend the token is looked up
// on the mirror node and must be a non-fungible collection.
func NewFromConfig(ctx context.Context, config shared.Config) (*Pipeline, error) {
	logger := shared.NewLogger(config.Log)

	store, err := ipfs.NewClient(ipfs.Config{
		APIURL:     config.IPFS.APIURL,
		GatewayURL: config.IPFS.GatewayURL,
		Timeout:    config.IPFS.Timeout,
		Pinning:    config.Pinning,
		Logger:     &logger,
	})
	if err != nil {
		return nil, err
	}

	cache, err := fpcache.Open(config.Assets.CachePath, fpcache.Options{
		Logger:   &logger,
		Validate: ipfs.IsContentAddress,
	})
	if err != nil {
		return nil, err
	}

	engine, err := loadEngine(config.Assets, &logger)
	if err != nil {
		return nil, err
	}

	resolverConfig := assets.Config{
		Store:         store,
		Cache:         cache,
		Fields:        config.Assets.Fields,
		Concurrency:   config.Assets.Concurrency,
		UploadRetries: config.Assets.UploadRetries,
		WriteURIs:     config.Assets.WriteURIs,
		Logger:        &logger,
	}
	pipelineConfig := Config{
		Store:         store,
		DefaultSchema: config.Schemas.Default,
		DefaultOwner:  config.Ledger.DefaultOwner,
		AutoPin:       config.Pinning.Complete(),
		Logger:        &logger,
	}
	if engine != nil {
		resolverConfig.Encrypter = engine
		pipelineConfig.Decrypter = engine
	}

	pipelineConfig.Resolver, err = assets.NewResolver(resolverConfig)
	if err != nil {
		return nil, err
	}
	pipelineConfig.Schemas = schema.NewLoader(schema.Config{
		OverrideDir: config.Schemas.OverrideDir,
		Strict:      config.Schemas.Strict,
		Logger:      &logger,
	})

	switch config.Ledger.Backend {
	case shared.LedgerBackendHedera:
		minter, err := newHederaMinter(ctx, config.Ledger, &logger)
		if err != nil {
			return nil, err
		}
		pipelineConfig.Minter = minter
	case shared.LedgerBackendEVM, "":
		minter, err := mint.NewClient(mint.Config{
			RPCURL:          config.Ledger.RPCURL,
			PrivateKey:      config.Ledger.PrivateKey,
			InterfacePath:   config.Ledger.Deployment,
			ContractAddress: config.Ledger.ContractAddress,
			MintMethod:      config.Ledger.MintMethod,
			BatchMintMethod: config.Ledger.BatchMintMethod,
			StripURIPrefix:  config.Ledger.StripURIPrefix,
			ConfirmInterval: config.Ledger.ConfirmInterval,
			ConfirmAttempts: config.Ledger.ConfirmAttempts,
			Logger:          &logger,
		})
		if err != nil {
			return nil, err
		}
		if pipelineConfig.DefaultOwner == "" {
			pipelineConfig.DefaultOwner = minter.SignerAddress()
		}
		pipelineConfig.Minter = minter
	default:
		return nil, &shared.ConfigurationError{
			Setting: "ledger.backend",
			Message: fmt.Sprintf("unsupported backend %q", config.Ledger.Backend),
		}
	}

	return New(pipelineConfig)
}

func loadEngine(config shared.AssetsConfig, logger *zerolog.Logger) (*envelope.Engine, error) {
	engine, err := envelope.NewEngineFromDir(config.KeyDir, envelope.Options{
		ChunkSize:     config.ChunkSize,
		BufferCeiling: config.BufferCeiling,
		Logger:        logger,
	})
	if err == nil {
		return engine, nil
	}
	if config.Encrypt {
		return nil, &shared.ConfigurationError{
			Setting: "assets.key_dir",
			Message: fmt.Sprintf("encryption is enabled but no usable key pair was loaded: %v", err),
		}
	}
	logger.Debug().Err(err).Str("key_dir", config.KeyDir).Msg("asset encryption unavailable")
	return nil, nil
}

func newHederaMinter(ctx context.Context, config shared.LedgerConfig, logger *zerolog.Logger) (*hts.Client, error) {
	client, err := hts.NewClient(hts.Config{
		Operator:  config.Operator,
		TokenID:   config.TokenID,
		SupplyKey: config.SupplyKey,
		MirrorURL: config.MirrorURL,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	collection, err := client.Collection(ctx)
	if err != nil {
		return nil, fmt.Errorf("looking up token %s: %w", client.TokenID(), err)
	}
	if !collection.NonFungible() {
		return nil, &shared.ConfigurationError{
			Setting: "ledger.token_id",
			Message: fmt.Sprintf("%s is %s, not a non-fungible collection", client.TokenID(), strings.ToLower(collection.Type)),
		}
	}
	if collection.TreasuryAccountID != "" && collection.TreasuryAccountID != client.Treasury() {
		logger.Warn().
			Str("treasury", collection.TreasuryAccountID).
			Str("operator", client.Treasury()).
			Msg("token treasury is not the operator; transfers to owners will fail")
	}
	return client, nil
}
