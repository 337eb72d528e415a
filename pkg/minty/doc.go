// Package minty composes the asset resolver, schema loader, content store
// and a ledger minter into the create/get/pin operations of the NFT
// pipeline.
//
// A create call runs sequentially: the schema is loaded and its defaults
// applied, asset fields are uploaded (through the fingerprint cache and,
// when requested, the envelope encryption engine), the filled document is
// validated, the document itself is uploaded, and only then is the mint
// submitted. A failure at any step returns before the next one starts, so
// an invalid document is never uploaded and nothing is minted for a
// document that failed.
package minty
