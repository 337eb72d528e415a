package ipfs

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID returns the CIDv1 (raw codec, sha2-256) the daemon assigns to
// data when it fits in a single block.
func ComputeCID(data []byte) (string, error) {
	digest, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, digest).String(), nil
}

// IsContentAddress reports whether value, with any ipfs:// or /ipfs/ root
// removed, starts with a decodable CID.
func IsContentAddress(value string) bool {
	address := AddressFromURI(value)
	if address == "" {
		return false
	}
	root, _, _ := strings.Cut(address, "/")
	_, err := cid.Decode(root)
	return err == nil
}

// AddressFromURI strips the ipfs:// scheme or a rooted /ipfs/ path from
// value. Anything after the CID is kept.
func AddressFromURI(value string) string {
	address := strings.TrimSpace(value)
	for {
		switch {
		case strings.HasPrefix(address, URIPrefix):
			address = strings.TrimPrefix(address, URIPrefix)
		case strings.HasPrefix(address, PathRoot):
			address = strings.TrimPrefix(address, PathRoot)
		case strings.HasPrefix(address, "ipfs/"):
			address = strings.TrimPrefix(address, "ipfs/")
		default:
			return strings.TrimRight(address, "/")
		}
	}
}

// URIFromAddress builds the ipfs:// URI for a content address.
func URIFromAddress(address string) string {
	return URIPrefix + AddressFromURI(address)
}
