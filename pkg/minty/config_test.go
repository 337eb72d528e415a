package minty

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"

	"github.com/skeetzo/minty-fresh-go/pkg/envelope"
	"github.com/skeetzo/minty-fresh-go/pkg/hts"
	"github.com/skeetzo/minty-fresh-go/pkg/mint"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

// Well-known development key; its address is hardhatAddress.
const (
	hardhatKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

const deploymentABI = `[
  {"type":"function","name":"mintToken","stateMutability":"nonpayable",
   "inputs":[{"name":"owner","type":"address"},{"name":"metadataURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

func testConfig(t *testing.T) shared.Config {
	t.Helper()
	dir := t.TempDir()

	deployment := filepath.Join(dir, "minty-deployment.json")
	record := `{"contract":{"name":"Minty","address":"0x5FbDB2315678afecb367f032d93F642f64180aa3","abi":` + deploymentABI + `}}`
	if err := os.WriteFile(deployment, []byte(record), 0o644); err != nil {
		t.Fatalf("failed to write deployment: %v", err)
	}

	config := shared.DefaultConfig()
	config.Assets.CachePath = filepath.Join(dir, ".minty", "fingerprints.jsonl")
	config.Assets.KeyDir = filepath.Join(dir, "keys")
	config.Schemas.OverrideDir = filepath.Join(dir, "schemas")
	config.Ledger.Deployment = deployment
	config.Ledger.PrivateKey = hardhatKey
	config.Log = shared.LogConfig{Level: "error", Format: "json", Output: &bytes.Buffer{}}
	return config
}

func TestNewFromConfigEVM(t *testing.T) {
	pipeline, err := NewFromConfig(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if _, ok := pipeline.minter.(*mint.Client); !ok {
		t.Fatalf("expected evm minter, got %T", pipeline.minter)
	}
	if pipeline.defaultOwner != hardhatAddress {
		t.Fatalf("expected signer as default owner, got %s", pipeline.defaultOwner)
	}
	if pipeline.decrypter != nil {
		t.Fatal("no key pair was configured")
	}
	if pipeline.autoPin {
		t.Fatal("pinning is not configured")
	}
}

func TestNewFromConfigLoadsKeyPair(t *testing.T) {
	config := testConfig(t)
	config.Assets.Encrypt = true
	config.Pinning = shared.PinningConfig{Name: "pinata", Endpoint: "https://api.pinata.cloud/psa", Key: "secret"}

	var configErr *shared.ConfigurationError
	if _, err := NewFromConfig(context.Background(), config); !errors.As(err, &configErr) || configErr.Setting != "assets.key_dir" {
		t.Fatalf("expected key_dir ConfigurationError, got %v", err)
	}

	pair, err := envelope.GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}
	if err := envelope.SaveKeyPair(config.Assets.KeyDir, pair); err != nil {
		t.Fatalf("failed to save key pair: %v", err)
	}

	pipeline, err := NewFromConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if pipeline.decrypter == nil {
		t.Fatal("expected decrypter from the key directory")
	}
	if !pipeline.autoPin {
		t.Fatal("expected auto pin with a complete pinning config")
	}
}

func TestNewFromConfigRejectsUnknownBackend(t *testing.T) {
	config := testConfig(t)
	config.Ledger.Backend = "solana"

	var configErr *shared.ConfigurationError
	if _, err := NewFromConfig(context.Background(), config); !errors.As(err, &configErr) || configErr.Setting != "ledger.backend" {
		t.Fatalf("expected ledger.backend ConfigurationError, got %v", err)
	}
}

func mirrorServer(t *testing.T, tokenType string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tokens/0.0.5005" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_id":"0.0.5005","type":"` + tokenType + `","treasury_account_id":"0.0.1001"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func hederaConfig(t *testing.T, mirrorURL string) shared.Config {
	t.Helper()
	pk, err := hedera.PrivateKeyGenerateEcdsa()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	config := testConfig(t)
	config.Ledger.Backend = shared.LedgerBackendHedera
	config.Ledger.TokenID = "0.0.5005"
	config.Ledger.MirrorURL = mirrorURL
	config.Ledger.Operator = shared.OperatorConfig{AccountID: "0.0.1001", PrivateKey: pk.String(), Network: "testnet"}
	return config
}

func TestNewFromConfigHedera(t *testing.T) {
	server := mirrorServer(t, "NON_FUNGIBLE_UNIQUE")

	pipeline, err := NewFromConfig(context.Background(), hederaConfig(t, server.URL))
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if _, ok := pipeline.minter.(*hts.Client); !ok {
		t.Fatalf("expected hts minter, got %T", pipeline.minter)
	}
}

func TestNewFromConfigHederaRejectsFungibleToken(t *testing.T) {
	server := mirrorServer(t, "FUNGIBLE_COMMON")

	var configErr *shared.ConfigurationError
	_, err := NewFromConfig(context.Background(), hederaConfig(t, server.URL))
	if !errors.As(err, &configErr) || configErr.Setting != "ledger.token_id" {
		t.Fatalf("expected ledger.token_id ConfigurationError, got %v", err)
	}
}
