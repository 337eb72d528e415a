// Package mirror is a small read-only client for the Hedera mirror node REST
// API. The hts minter uses it to answer token URI and ownership queries for
// serials it has minted, since the consensus nodes do not expose NFT
// metadata directly.
package mirror
