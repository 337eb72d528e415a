// Minty Fresh turns local files and metadata into content-addressed,
// schema-validated and optionally encrypted IPFS objects, then mints an NFT
// that points at them on an EVM contract or a Hedera Token Service
// collection.
//
// # Packages
//
//   - pkg/minty: the end-to-end pipeline (create, batch create, get, pin, fetch)
//   - pkg/assets: classifies asset fields and uploads them concurrently
//   - pkg/fpcache: append-only fingerprint cache keyed by content hash
//   - pkg/envelope: secp256k1 + AES hybrid encryption with a streaming mode
//   - pkg/ipfs: Kubo RPC client with idempotent remote pinning
//   - pkg/schema: JSON schema templates, defaults and validation
//   - pkg/metadata: ordered metadata documents
//   - pkg/mint: EVM mint orchestrator (gas estimation, confirmation, receipt events)
//   - pkg/hts: Hedera Token Service minter
//   - pkg/mirror: Hedera mirror node client
//   - pkg/shared: configuration, logging and error types
//
// # Installation
//
//	go get github.com/skeetzo/minty-fresh-go@latest
package mintyfresh
