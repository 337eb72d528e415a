package minty

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/skeetzo/minty-fresh-go/pkg/assets"
	"github.com/skeetzo/minty-fresh-go/pkg/fpcache"
	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/schema"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

const testOwner = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type fakeStore struct {
	mutex   sync.Mutex
	blobs   map[string][]byte
	names   []string
	pins    []string
	failAdd error
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string][]byte{}}
}

func (s *fakeStore) Add(ctx context.Context, name string, content io.Reader) (ipfs.AddResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return ipfs.AddResult{}, err
	}
	return s.AddBytes(ctx, name, data)
}

func (s *fakeStore) AddBytes(ctx context.Context, name string, data []byte) (ipfs.AddResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.names = append(s.names, name)
	if s.failAdd != nil {
		return ipfs.AddResult{}, s.failAdd
	}
	address, err := ipfs.ComputeCID(data)
	if err != nil {
		return ipfs.AddResult{}, err
	}
	s.blobs[address] = append([]byte(nil), data...)
	return ipfs.AddResult{Address: address, URI: ipfs.URIFromAddress(address), Size: int64(len(data))}, nil
}

func (s *fakeStore) Get(ctx context.Context, addressOrURI string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, ok := s.blobs[ipfs.AddressFromURI(addressOrURI)]
	if !ok {
		return nil, &shared.NetworkError{Op: "ipfs cat", Status: 500, Err: fmt.Errorf("block not found")}
	}
	return data, nil
}

func (s *fakeStore) Pin(ctx context.Context, addressOrURI string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pins = append(s.pins, ipfs.AddressFromURI(addressOrURI))
	return nil
}

func (s *fakeStore) GatewayURLFor(addressOrURI string) string {
	return "http://gateway.test/ipfs/" + ipfs.AddressFromURI(addressOrURI)
}

func (s *fakeStore) uploaded() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.names...)
}

func (s *fakeStore) pinned() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.pins...)
}

type mintedToken struct {
	owner string
	uri   string
}

type fakeMinter struct {
	mutex   sync.Mutex
	next    int64
	tokens  map[int64]mintedToken
	calls   int
	mintErr error
}

func newFakeMinter() *fakeMinter {
	return &fakeMinter{next: 1, tokens: map[int64]mintedToken{}}
}

func (m *fakeMinter) Mint(ctx context.Context, owner string, uri string) (*big.Int, error) {
	ids, err := m.MintBatch(ctx, []string{owner}, []string{uri})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

func (m *fakeMinter) MintBatch(ctx context.Context, owners []string, uris []string) ([]*big.Int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls++
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	ids := make([]*big.Int, 0, len(uris))
	for index, uri := range uris {
		m.tokens[m.next] = mintedToken{owner: owners[index], uri: uri}
		ids = append(ids, big.NewInt(m.next))
		m.next++
	}
	return ids, nil
}

func (m *fakeMinter) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	token, err := m.token(tokenID)
	return token.uri, err
}

func (m *fakeMinter) OwnerOf(ctx context.Context, tokenID *big.Int) (string, error) {
	token, err := m.token(tokenID)
	return token.owner, err
}

func (m *fakeMinter) token(tokenID *big.Int) (mintedToken, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	token, ok := m.tokens[tokenID.Int64()]
	if !ok {
		return mintedToken{}, fmt.Errorf("token %v does not exist", tokenID)
	}
	return token, nil
}

func (m *fakeMinter) callCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.calls
}

type testRig struct {
	store    *fakeStore
	minter   *fakeMinter
	pipeline *Pipeline
}

func newTestRig(t *testing.T, encrypter assets.Encrypter, decrypter Decrypter) testRig {
	t.Helper()

	store := newFakeStore()
	minter := newFakeMinter()

	cache, err := fpcache.Open(filepath.Join(t.TempDir(), "fingerprints.jsonl"), fpcache.Options{Validate: ipfs.IsContentAddress})
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	resolver, err := assets.NewResolver(assets.Config{
		Store:         store,
		Cache:         cache,
		Encrypter:     encrypter,
		RetryInterval: 1,
	})
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}

	pipeline, err := New(Config{
		Store:         store,
		Resolver:      resolver,
		Schemas:       schema.NewLoader(schema.Config{OverrideDir: t.TempDir()}),
		Minter:        minter,
		Decrypter:     decrypter,
		DefaultSchema: "content",
		DefaultOwner:  testOwner,
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return testRig{store: store, minter: minter, pipeline: pipeline}
}
