package minty

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/skeetzo/minty-fresh-go/pkg/envelope"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/metadata"
	"github.com/skeetzo/minty-fresh-go/pkg/mint"
	"github.com/skeetzo/minty-fresh-go/pkg/schema"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

// catCID is the CIDv1 (raw, sha2-256) of the bytes "minty cat".
const catCID = "bafkreigwsp4l6kzy7jdj6qj262cnaa7kjsva73ttcepkox3w3ne2g45p6i"

func writeCat(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, []byte("minty cat"), 0o644); err != nil {
		t.Fatalf("failed to write asset: %v", err)
	}
	return path
}

func TestCreateNFTFromAssetFile(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	path := writeCat(t)

	fields := metadata.New()
	fields.Set("name", "Cat")
	fields.Set("description", "A very minty cat")

	nft, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), path, fields, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateNFTFromAssetFile failed: %v", err)
	}

	if nft.TokenID == nil || nft.TokenID.Int64() != 1 {
		t.Fatalf("unexpected token id: %v", nft.TokenID)
	}
	if nft.Owner != testOwner {
		t.Fatalf("expected default owner, got %s", nft.Owner)
	}
	if nft.Schema != "content" || nft.SchemaAmbiguous {
		t.Fatalf("unexpected schema %s (ambiguous %v)", nft.Schema, nft.SchemaAmbiguous)
	}
	if nft.Metadata.String("image") != catCID {
		t.Fatalf("expected image %s, got %v", catCID, nft.Metadata.String("image"))
	}
	if fields.Has("image") {
		t.Fatal("caller's fields should not be modified")
	}
	if nft.MetadataURI != ipfs.URIFromAddress(nft.MetadataAddress) {
		t.Fatalf("uri %s does not match address %s", nft.MetadataURI, nft.MetadataAddress)
	}

	stored, err := rig.store.Get(context.Background(), nft.MetadataURI)
	if err != nil {
		t.Fatalf("metadata not stored: %v", err)
	}
	doc, err := metadata.Parse(stored)
	if err != nil {
		t.Fatalf("stored metadata is not a document: %v", err)
	}
	if got := doc.Keys(); !slices.Equal(got, []string{"name", "description", "image"}) {
		t.Fatalf("unexpected stored keys: %v", got)
	}

	uri, _ := rig.minter.TokenURI(context.Background(), nft.TokenID)
	if uri != nft.MetadataURI {
		t.Fatalf("minted uri %s, expected %s", uri, nft.MetadataURI)
	}
	if uploads := rig.store.uploaded(); !slices.Equal(uploads, []string{"cat.png", MetadataFileName}) {
		t.Fatalf("unexpected uploads: %v", uploads)
	}
}

func TestCreateNFTFromAssetData(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	fields := metadata.FromMap(map[string]any{"name": "Inline cat"})
	nft, err := rig.pipeline.CreateNFTFromAssetData(context.Background(), []byte("minty cat"), fields, CreateOptions{Owner: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"})
	if err != nil {
		t.Fatalf("CreateNFTFromAssetData failed: %v", err)
	}
	if nft.Metadata.String("image") != catCID {
		t.Fatalf("expected image %s, got %s", catCID, nft.Metadata.String("image"))
	}
	if nft.Owner != "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC" {
		t.Fatalf("expected explicit owner, got %s", nft.Owner)
	}

	if _, err := rig.pipeline.CreateNFTFromAssetData(context.Background(), nil, fields, CreateOptions{}); err == nil {
		t.Fatal("expected error for empty data")
	}
	if _, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), " ", fields, CreateOptions{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInvalidDocumentIsNeverUploadedOrMinted(t *testing.T) {
	for _, name := range []any{nil, "", "   "} {
		rig := newTestRig(t, nil, nil)

		fields := metadata.New()
		if name != nil {
			fields.Set("name", name)
		}

		_, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), writeCat(t), fields, CreateOptions{})
		var validationErr *schema.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("name %q: expected ValidationError, got %v", name, err)
		}
		if !slices.Contains(validationErr.Fields(), "name") {
			t.Fatalf("name %q: expected violation for name, got %v", name, validationErr.Fields())
		}
		if slices.Contains(rig.store.uploaded(), MetadataFileName) {
			t.Fatalf("name %q: invalid metadata was uploaded", name)
		}
		if rig.minter.callCount() != 0 {
			t.Fatalf("name %q: invalid document was minted", name)
		}
	}
}

func TestFailedAssetUploadBlocksMint(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.store.failAdd = &shared.NetworkError{Op: "ipfs add", Status: 400, Err: errors.New("bad request")}

	fields := metadata.FromMap(map[string]any{"name": "Cat"})
	if _, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), writeCat(t), fields, CreateOptions{}); err == nil {
		t.Fatal("expected upload failure")
	}
	if rig.minter.callCount() != 0 {
		t.Fatal("nothing should be minted after a failed upload")
	}
}

func TestMintFailureReturnsNoToken(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.minter.mintErr = &mint.TransactionError{TxHash: "0xabc", Reason: "reverted"}

	fields := metadata.FromMap(map[string]any{"name": "Cat"})
	nft, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), writeCat(t), fields, CreateOptions{})
	var txErr *mint.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %v", err)
	}
	if nft.TokenID != nil {
		t.Fatalf("expected no token id, got %v", nft.TokenID)
	}
}

func TestCreateNFTBatch(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	items := []BatchItem{
		{Metadata: metadata.FromMap(map[string]any{"name": "One", "image": writeCat(t)})},
		{Metadata: metadata.FromMap(map[string]any{"name": "Two", "image": catCID}), Owner: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"},
	}
	nfts, err := rig.pipeline.CreateNFTBatch(context.Background(), items, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateNFTBatch failed: %v", err)
	}
	if len(nfts) != 2 {
		t.Fatalf("expected two nfts, got %d", len(nfts))
	}
	if nfts[0].TokenID.Int64() != 1 || nfts[1].TokenID.Int64() != 2 {
		t.Fatalf("unexpected token ids: %v %v", nfts[0].TokenID, nfts[1].TokenID)
	}
	if nfts[0].Owner != testOwner || nfts[1].Owner != "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC" {
		t.Fatalf("unexpected owners: %s %s", nfts[0].Owner, nfts[1].Owner)
	}
	if rig.minter.callCount() != 1 {
		t.Fatalf("expected a single batch mint, got %d calls", rig.minter.callCount())
	}
}

func TestCreateNFTBatchStopsOnInvalidItem(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	items := []BatchItem{
		{Metadata: metadata.FromMap(map[string]any{"name": "One", "image": catCID})},
		{Metadata: metadata.FromMap(map[string]any{"image": catCID})},
	}
	if _, err := rig.pipeline.CreateNFTBatch(context.Background(), items, CreateOptions{}); err == nil {
		t.Fatal("expected validation failure")
	}
	if rig.minter.callCount() != 0 {
		t.Fatal("nothing should be minted when an item fails")
	}
	if _, err := rig.pipeline.CreateNFTBatch(context.Background(), nil, CreateOptions{}); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestGetNFTAndPinTokenData(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	fields := metadata.FromMap(map[string]any{"name": "Cat"})
	created, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), writeCat(t), fields, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateNFTFromAssetFile failed: %v", err)
	}

	fetched, err := rig.pipeline.GetNFT(context.Background(), created.TokenID)
	if err != nil {
		t.Fatalf("GetNFT failed: %v", err)
	}
	if fetched.MetadataAddress != created.MetadataAddress || fetched.Owner != testOwner {
		t.Fatalf("unexpected nft: %+v", fetched)
	}
	if fetched.Metadata.String("name") != "Cat" || fetched.Encrypted {
		t.Fatalf("unexpected metadata: %v", fetched.Metadata.Map())
	}
	if len(fetched.Assets) != 1 || fetched.Assets[0].Name != "image" || fetched.Assets[0].Address != catCID {
		t.Fatalf("unexpected assets: %+v", fetched.Assets)
	}
	if fetched.GatewayURL != "http://gateway.test/ipfs/"+created.MetadataAddress {
		t.Fatalf("unexpected gateway url: %s", fetched.GatewayURL)
	}

	if err := rig.pipeline.PinTokenData(context.Background(), created.TokenID); err != nil {
		t.Fatalf("PinTokenData failed: %v", err)
	}
	if pins := rig.store.pinned(); !slices.Equal(pins, []string{created.MetadataAddress, catCID}) {
		t.Fatalf("unexpected pins: %v", pins)
	}

	data, err := rig.pipeline.FetchAsset(context.Background(), fetched.Assets[0].URI, false)
	if err != nil {
		t.Fatalf("FetchAsset failed: %v", err)
	}
	if string(data) != "minty cat" {
		t.Fatalf("unexpected asset content: %q", data)
	}
}

func TestPinOption(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	fields := metadata.FromMap(map[string]any{"name": "Cat", "image": catCID})
	nft, err := rig.pipeline.CreateNFT(context.Background(), fields, CreateOptions{Pin: true})
	if err != nil {
		t.Fatalf("CreateNFT failed: %v", err)
	}
	if !nft.Pinned {
		t.Fatal("expected nft to be pinned")
	}
	if pins := rig.store.pinned(); !slices.Equal(pins, []string{nft.MetadataAddress, catCID}) {
		t.Fatalf("unexpected pins: %v", pins)
	}
}

func TestEncryptedAssetRoundTrip(t *testing.T) {
	pair, err := envelope.GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}
	engine, err := envelope.NewEngine(envelope.Options{PublicKey: pair.PublicKey, PrivateKey: pair.PrivateKey})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	rig := newTestRig(t, engine, engine)

	fields := metadata.FromMap(map[string]any{"name": "Secret cat"})
	nft, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), writeCat(t), fields, CreateOptions{Encrypt: true})
	if err != nil {
		t.Fatalf("CreateNFTFromAssetFile failed: %v", err)
	}
	if !nft.Encrypted || nft.Metadata.String("encryption") != envelope.Scheme {
		t.Fatalf("expected encrypted document, got %v", nft.Metadata.Map())
	}
	if nft.Metadata.String("image") == catCID {
		t.Fatal("encrypted asset should not have the plaintext address")
	}

	fetched, err := rig.pipeline.GetNFT(context.Background(), nft.TokenID)
	if err != nil {
		t.Fatalf("GetNFT failed: %v", err)
	}
	if !fetched.Encrypted {
		t.Fatal("expected fetched nft to be marked encrypted")
	}

	plaintext, err := rig.pipeline.FetchAsset(context.Background(), fetched.Metadata.String("image"), true)
	if err != nil {
		t.Fatalf("FetchAsset failed: %v", err)
	}
	if string(plaintext) != "minty cat" {
		t.Fatalf("unexpected plaintext: %q", plaintext)
	}
}

func TestEncryptedTemplateRequiresKey(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	fields := metadata.FromMap(map[string]any{"name": "Secret cat"})
	_, err := rig.pipeline.CreateNFTFromAssetFile(context.Background(), writeCat(t), fields, CreateOptions{Schema: "encrypted"})
	var configErr *shared.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestFetchAssetFailsClosedWithoutKey(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	if _, err := rig.store.AddBytes(context.Background(), "blob", []byte("minty cat")); err != nil {
		t.Fatalf("AddBytes failed: %v", err)
	}

	_, err := rig.pipeline.FetchAsset(context.Background(), catCID, true)
	if !errors.Is(err, envelope.ErrMissingPrivateKey) {
		t.Fatalf("expected ErrMissingPrivateKey, got %v", err)
	}
	if _, err := rig.pipeline.FetchAsset(context.Background(), "not a cid", false); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestGetNFTRejectsNonContentURI(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	id, _ := rig.minter.Mint(context.Background(), testOwner, "https://example.com/1.json")

	if _, err := rig.pipeline.GetNFT(context.Background(), id); err == nil {
		t.Fatal("expected error for non content-addressed token uri")
	}
}

func TestNewRequiresComponents(t *testing.T) {
	var configErr *shared.ConfigurationError
	if _, err := New(Config{}); !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, err := New(Config{Store: newFakeStore()}); !errors.As(err, &configErr) || configErr.Setting != "assets" {
		t.Fatalf("expected assets ConfigurationError, got %v", err)
	}
}
