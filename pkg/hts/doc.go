// Package hts mints NFTs as serials of an existing Hedera Token Service
// collection. It satisfies the same Mint/MintBatch/TokenURI/OwnerOf surface
// as the EVM minter in package mint, so the pipeline can target either
// ledger.
//
// The metadata URI is stored as the serial's metadata bytes. Minted serials
// land in the token treasury, which must be the operator account; when an
// owner other than the treasury is given, the serial is transferred to it
// in a follow-up transaction. Owners must already be associated with the
// token.
//
// Reads go through the mirror node, so a serial becomes visible to
// TokenURI and OwnerOf a few seconds after consensus.
package hts
