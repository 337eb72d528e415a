// Package ipfs is a client for a Kubo daemon's RPC API and HTTP gateway.
//
// Content is added as CIDv1 with raw leaves so that the address of a single
// blob can be reproduced locally with ComputeCID. URIs always use the ipfs://
// scheme and never carry a second /ipfs/ root. Remote pinning goes through a
// named pinning service that is registered with the daemon on first use.
package ipfs
