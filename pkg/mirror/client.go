package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

// ErrNotFound is returned when the mirror node has no record of the entity.
var ErrNotFound = errors.New("not found on mirror node")

type Config struct {
	Network    string
	BaseURL    string
	HTTPClient *http.Client
	APIKey     string
	Headers    map[string]string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	headers    map[string]string
}

// NewClient creates a new Client. BaseURL overrides the public endpoint for
// the network.
func NewClient(config Config) (*Client, error) {
	network, err := shared.NormalizeNetwork(config.Network)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		switch network {
		case shared.NetworkMainnet:
			baseURL = "https://mainnet-public.mirrornode.hedera.com"
		case shared.NetworkPreviewnet:
			baseURL = "https://previewnet.mirrornode.hedera.com"
		default:
			baseURL = "https://testnet.mirrornode.hedera.com"
		}
	}
	parsedBaseURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mirror base URL: %w", err)
	}
	if parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid mirror base URL: scheme must be http or https")
	}
	if strings.TrimSpace(parsedBaseURL.Host) == "" {
		return nil, fmt.Errorf("invalid mirror base URL: host is required")
	}
	baseURL = strings.TrimRight(parsedBaseURL.String(), "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	headers := map[string]string{}
	for key, value := range config.Headers {
		headers[key] = value
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		apiKey:     strings.TrimSpace(config.APIKey),
		headers:    headers,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetToken returns the token's collection-level details.
func (c *Client) GetToken(ctx context.Context, tokenID string) (TokenInfo, error) {
	var info TokenInfo
	normalized := strings.TrimSpace(tokenID)
	if normalized == "" {
		return info, fmt.Errorf("token ID is required")
	}

	path := fmt.Sprintf("/api/v1/tokens/%s", url.PathEscape(normalized))
	if err := c.getJSON(ctx, path, &info); err != nil {
		return info, err
	}
	return info, nil
}

// GetNFT returns a single serial. A serial the mirror node has not ingested
// yet yields ErrNotFound.
func (c *Client) GetNFT(ctx context.Context, tokenID string, serial int64) (NFT, error) {
	var nft NFT
	normalized := strings.TrimSpace(tokenID)
	if normalized == "" {
		return nft, fmt.Errorf("token ID is required")
	}
	if serial <= 0 {
		return nft, fmt.Errorf("serial number must be positive")
	}

	path := fmt.Sprintf("/api/v1/tokens/%s/nfts/%d", url.PathEscape(normalized), serial)
	if err := c.getJSON(ctx, path, &nft); err != nil {
		return nft, err
	}
	return nft, nil
}

// GetAccountNFTs lists the serials of tokenID held by accountID, following
// the mirror node's pagination links. An empty tokenID lists every NFT.
func (c *Client) GetAccountNFTs(ctx context.Context, accountID string, tokenID string) ([]NFT, error) {
	normalized := strings.TrimSpace(accountID)
	if normalized == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	values := url.Values{}
	if token := strings.TrimSpace(tokenID); token != "" {
		values.Set("token.id", token)
	}

	endpoint := fmt.Sprintf("/api/v1/accounts/%s/nfts", url.PathEscape(normalized))
	if encoded := values.Encode(); encoded != "" {
		endpoint = endpoint + "?" + encoded
	}

	result := make([]NFT, 0)
	next := endpoint
	for next != "" {
		var page nftsResponse
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		result = append(result, page.NFTs...)
		next = page.Links.Next
	}

	return result, nil
}

func (c *Client) getJSON(ctx context.Context, pathOrURL string, target any) error {
	requestURL := c.resolveURL(pathOrURL)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	for key, value := range c.headers {
		request.Header.Set(key, value)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &shared.NetworkError{Op: "mirror node request", Retryable: true, Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return &shared.NetworkError{Op: "mirror node request", Retryable: true, Err: err}
	}

	if response.StatusCode == http.StatusNotFound {
		return &shared.NetworkError{Op: "mirror node request", Status: response.StatusCode, Err: ErrNotFound}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &shared.NetworkError{
			Op:        "mirror node request",
			Status:    response.StatusCode,
			Retryable: response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests,
			Err:       errors.New(strings.TrimSpace(string(body))),
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode mirror node response: %w", err)
	}

	return nil
}

func (c *Client) resolveURL(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}

	path := pathOrURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}
