package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	LedgerBackendEVM    = "evm"
	LedgerBackendHedera = "hedera"
)

// Config is the full pipeline configuration. The module consumes it but does
// not own where it comes from; LoadConfig is a convenience for callers that
// keep it in a YAML file.
type Config struct {
	IPFS    IPFSConfig    `yaml:"ipfs"`
	Pinning PinningConfig `yaml:"pinning"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Assets  AssetsConfig  `yaml:"assets"`
	Schemas SchemasConfig `yaml:"schemas"`
	Log     LogConfig     `yaml:"log"`
}

type IPFSConfig struct {
	APIURL     string        `yaml:"api_url"`
	GatewayURL string        `yaml:"gateway_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// PinningConfig names a remote pinning service registered with the store
// daemon. All three fields are required before anything can be pinned.
type PinningConfig struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

// Complete reports whether every field needed to register the service is set.
func (p PinningConfig) Complete() bool {
	return strings.TrimSpace(p.Name) != "" &&
		strings.TrimSpace(p.Endpoint) != "" &&
		strings.TrimSpace(p.Key) != ""
}

type LedgerConfig struct {
	Backend         string         `yaml:"backend"`
	RPCURL          string         `yaml:"rpc_url"`
	PrivateKey      string         `yaml:"private_key"`
	Deployment      string         `yaml:"deployment"`
	ContractAddress string         `yaml:"contract_address"`
	MintMethod      string         `yaml:"mint_method"`
	BatchMintMethod string         `yaml:"batch_mint_method"`
	StripURIPrefix  bool           `yaml:"strip_uri_prefix"`
	ConfirmInterval time.Duration  `yaml:"confirm_interval"`
	ConfirmAttempts int            `yaml:"confirm_attempts"`
	DefaultOwner    string         `yaml:"default_owner"`
	TokenID         string         `yaml:"token_id"`
	SupplyKey       string         `yaml:"supply_key"`
	MirrorURL       string         `yaml:"mirror_url"`
	Operator        OperatorConfig `yaml:"operator"`
}

type AssetsConfig struct {
	Fields        []string `yaml:"fields"`
	Encrypt       bool     `yaml:"encrypt"`
	KeyDir        string   `yaml:"key_dir"`
	CachePath     string   `yaml:"cache_path"`
	ChunkSize     int      `yaml:"chunk_size"`
	BufferCeiling int64    `yaml:"buffer_ceiling"`
	Concurrency   int      `yaml:"concurrency"`
	UploadRetries int      `yaml:"upload_retries"`
	// WriteURIs stores ipfs:// URIs in documents instead of bare addresses.
	WriteURIs bool `yaml:"write_uris"`
}

type SchemasConfig struct {
	Default     string `yaml:"default"`
	OverrideDir string `yaml:"override_dir"`
	Strict      bool   `yaml:"strict"`
}

// DefaultConfig returns the settings used when no file or variable says
// otherwise. A local Kubo daemon and a local EVM node are assumed.
func DefaultConfig() Config {
	return Config{
		IPFS: IPFSConfig{
			APIURL:     "http://127.0.0.1:5001",
			GatewayURL: "http://127.0.0.1:8080",
			Timeout:    60 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend:         LedgerBackendEVM,
			RPCURL:          "http://127.0.0.1:8545",
			Deployment:      "minty-deployment.json",
			MintMethod:      "mintToken",
			StripURIPrefix:  false,
			ConfirmInterval: 2 * time.Second,
			ConfirmAttempts: 90,
		},
		Assets: AssetsConfig{
			Fields:        []string{"image", "animation_url"},
			KeyDir:        "keys",
			CachePath:     ".minty/fingerprints.jsonl",
			ChunkSize:     1 << 20,
			BufferCeiling: 256 << 20,
			Concurrency:   4,
			UploadRetries: 3,
		},
		Schemas: SchemasConfig{
			Default:     "nft",
			OverrideDir: "schemas",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads the YAML file at path (a missing file is not an error),
// applies MINTY_* environment overrides and fills in anything left empty.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	loadDotEnvIfPresent()
	if err := applyEnvOverrides(&config); err != nil {
		return Config{}, err
	}
	applyDefaults(&config)

	return config, nil
}

func applyEnvOverrides(config *Config) error {
	setString := func(target *string, keys ...string) {
		if value := firstNonEmptyEnv(keys...); value != "" {
			*target = value
		}
	}

	setString(&config.IPFS.APIURL, "MINTY_IPFS_API_URL", "IPFS_API_URL")
	setString(&config.IPFS.GatewayURL, "MINTY_IPFS_GATEWAY_URL", "IPFS_GATEWAY_URL")
	setString(&config.Pinning.Name, "MINTY_PINNING_SERVICE_NAME", "PINNING_SERVICE_NAME")
	setString(&config.Pinning.Endpoint, "MINTY_PINNING_SERVICE_ENDPOINT", "PINNING_SERVICE_ENDPOINT")
	setString(&config.Pinning.Key, "MINTY_PINNING_SERVICE_KEY", "PINNING_SERVICE_KEY")
	setString(&config.Ledger.Backend, "MINTY_LEDGER_BACKEND")
	setString(&config.Ledger.RPCURL, "MINTY_ETH_RPC_URL", "ETH_RPC_URL")
	setString(&config.Ledger.PrivateKey, "MINTY_ETH_PRIVATE_KEY", "ETH_PRIVATE_KEY")
	setString(&config.Ledger.Deployment, "MINTY_CONTRACT_DEPLOYMENT")
	setString(&config.Ledger.ContractAddress, "MINTY_CONTRACT_ADDRESS")
	setString(&config.Ledger.MintMethod, "MINTY_MINT_METHOD")
	setString(&config.Ledger.BatchMintMethod, "MINTY_BATCH_MINT_METHOD")
	setString(&config.Ledger.TokenID, "MINTY_HEDERA_TOKEN_ID")
	setString(&config.Ledger.SupplyKey, "MINTY_HEDERA_SUPPLY_KEY")
	setString(&config.Assets.KeyDir, "MINTY_KEY_DIR")
	setString(&config.Assets.CachePath, "MINTY_CACHE_PATH")
	setString(&config.Schemas.OverrideDir, "MINTY_SCHEMA_DIR")
	setString(&config.Log.Level, "MINTY_LOG_LEVEL")

	if raw := firstNonEmptyEnv("MINTY_ENCRYPT_ASSETS"); raw != "" {
		encrypt, err := strconv.ParseBool(raw)
		if err != nil {
			return &ConfigurationError{Setting: "MINTY_ENCRYPT_ASSETS", Message: fmt.Sprintf("must be a boolean, got %q", raw)}
		}
		config.Assets.Encrypt = encrypt
	}
	if raw := firstNonEmptyEnv("MINTY_ASSET_FIELDS"); raw != "" {
		config.Assets.Fields = splitFieldList(raw)
	}

	if strings.EqualFold(config.Ledger.Backend, LedgerBackendHedera) && config.Ledger.Operator.AccountID == "" {
		config.Ledger.Operator = operatorConfigFromEnv()
	}

	return nil
}

func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if strings.TrimSpace(config.IPFS.APIURL) == "" {
		config.IPFS.APIURL = defaults.IPFS.APIURL
	}
	if config.IPFS.Timeout <= 0 {
		config.IPFS.Timeout = defaults.IPFS.Timeout
	}
	config.Ledger.Backend = strings.ToLower(strings.TrimSpace(config.Ledger.Backend))
	if config.Ledger.Backend == "" {
		config.Ledger.Backend = defaults.Ledger.Backend
	}
	if strings.TrimSpace(config.Ledger.MintMethod) == "" {
		config.Ledger.MintMethod = defaults.Ledger.MintMethod
	}
	if config.Ledger.ConfirmInterval <= 0 {
		config.Ledger.ConfirmInterval = defaults.Ledger.ConfirmInterval
	}
	if config.Ledger.ConfirmAttempts <= 0 {
		config.Ledger.ConfirmAttempts = defaults.Ledger.ConfirmAttempts
	}
	if len(config.Assets.Fields) == 0 {
		config.Assets.Fields = defaults.Assets.Fields
	}
	if strings.TrimSpace(config.Assets.KeyDir) == "" {
		config.Assets.KeyDir = defaults.Assets.KeyDir
	}
	if strings.TrimSpace(config.Assets.CachePath) == "" {
		config.Assets.CachePath = defaults.Assets.CachePath
	}
	if config.Assets.ChunkSize <= 0 {
		config.Assets.ChunkSize = defaults.Assets.ChunkSize
	}
	if config.Assets.BufferCeiling <= 0 {
		config.Assets.BufferCeiling = defaults.Assets.BufferCeiling
	}
	if config.Assets.Concurrency <= 0 {
		config.Assets.Concurrency = defaults.Assets.Concurrency
	}
	if config.Assets.UploadRetries < 0 {
		config.Assets.UploadRetries = 0
	}
	if strings.TrimSpace(config.Schemas.Default) == "" {
		config.Schemas.Default = defaults.Schemas.Default
	}
}

func splitFieldList(raw string) []string {
	fields := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}
