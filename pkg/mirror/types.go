package mirror

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// TokenInfo is the subset of /api/v1/tokens/{id} the minter cares about.
type TokenInfo struct {
	TokenID           string         `json:"token_id"`
	Name              string         `json:"name"`
	Symbol            string         `json:"symbol"`
	Type              string         `json:"type"`
	TreasuryAccountID string         `json:"treasury_account_id"`
	TotalSupply       string         `json:"total_supply"`
	MaxSupply         string         `json:"max_supply"`
	SupplyKey         map[string]any `json:"supply_key"`
	Deleted           bool           `json:"deleted"`
}

// NonFungible reports whether the token is an NFT collection.
func (t TokenInfo) NonFungible() bool {
	return t.Type == "NON_FUNGIBLE_UNIQUE"
}

// NFT is a single serial of a non-fungible token.
type NFT struct {
	AccountID         string `json:"account_id"`
	CreatedTimestamp  string `json:"created_timestamp"`
	ModifiedTimestamp string `json:"modified_timestamp"`
	Deleted           bool   `json:"deleted"`
	Metadata          string `json:"metadata"`
	SerialNumber      int64  `json:"serial_number"`
	TokenID           string `json:"token_id"`
	Spender           string `json:"spender,omitempty"`
}

type nftsResponse struct {
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
	NFTs []NFT `json:"nfts"`
}

// DecodeMetadata returns the raw metadata bytes the serial was minted with.
func DecodeMetadata(nft NFT) ([]byte, error) {
	if strings.TrimSpace(nft.Metadata) == "" {
		return nil, fmt.Errorf("nft %s/%d has no metadata", nft.TokenID, nft.SerialNumber)
	}
	decoded, err := base64.StdEncoding.DecodeString(nft.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nft metadata: %w", err)
	}
	return decoded, nil
}
