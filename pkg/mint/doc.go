// Package mint submits mint transactions to an NFT contract on an EVM chain
// and recovers the new token ids from the confirmed receipt.
//
// The contract is described by a deployment record, a compiled artifact or a
// raw ABI. The mint and batch-mint entrypoints are named in configuration and
// checked against the ABI when the client is created. Token ids are read from
// the first recognized transfer event shape in the receipt, tried in order:
// ERC-721 Transfer, ERC-1155 TransferSingle, ERC-1155 TransferBatch.
package mint
