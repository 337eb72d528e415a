package ipfs

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

type Client struct {
	apiURL     string
	gatewayURL string
	httpClient *http.Client
	// transferClient carries add, cat and gateway bodies. Its timeout only
	// bounds the wait for response headers, so large streams are limited by
	// the caller's context instead.
	transferClient *http.Client
	headers        map[string]string
	pinning        shared.PinningConfig
	logger         *zerolog.Logger

	serviceMutex       sync.Mutex
	configuredServices map[string]bool
}

// NewClient creates a new Client.
func NewClient(config Config) (*Client, error) {
	apiURL, err := normalizeBaseURL(config.APIURL, DefaultAPIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid IPFS API URL: %w", err)
	}
	gatewayURL, err := normalizeBaseURL(config.GatewayURL, DefaultGatewayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid IPFS gateway URL: %w", err)
	}

	httpClient := config.HTTPClient
	transferClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}

		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		transferClient = &http.Client{Transport: transport}
	}

	headers := map[string]string{}
	for key, value := range config.Headers {
		headers[key] = value
	}

	return &Client{
		apiURL:             apiURL,
		gatewayURL:         gatewayURL,
		httpClient:         httpClient,
		transferClient:     transferClient,
		headers:            headers,
		pinning:            config.Pinning,
		logger:             shared.LoggerOrNop(config.Logger),
		configuredServices: map[string]bool{},
	}, nil
}

// APIURL returns the daemon RPC base URL.
func (c *Client) APIURL() string {
	return c.apiURL
}

// GatewayURL returns the HTTP gateway base URL.
func (c *Client) GatewayURL() string {
	return c.gatewayURL
}

// GatewayURLFor returns the gateway URL that serves addressOrURI.
func (c *Client) GatewayURLFor(addressOrURI string) string {
	return c.gatewayURL + PathRoot + AddressFromURI(addressOrURI)
}

// AddBytes stores data under the given file name.
func (c *Client) AddBytes(ctx context.Context, name string, data []byte) (AddResult, error) {
	return c.Add(ctx, name, bytes.NewReader(data))
}

// Add streams content to the daemon and returns its content address. The
// reader is consumed once; callers that retry must supply a fresh reader.
func (c *Client) Add(ctx context.Context, name string, content io.Reader) (AddResult, error) {
	if content == nil {
		return AddResult{}, fmt.Errorf("content is required")
	}
	fileName := filepath.Base(strings.TrimSpace(name))
	if fileName == "" || fileName == "." || fileName == "/" {
		fileName = "file"
	}

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)
	copyDone := make(chan error, 1)
	go func() {
		part, err := form.CreateFormFile("file", fileName)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = form.Close()
		}
		bodyWriter.CloseWithError(err)
		copyDone <- err
	}()

	values := url.Values{}
	values.Set("cid-version", "1")
	values.Set("raw-leaves", "true")
	values.Set("pin", "true")
	values.Set("progress", "false")

	response, err := c.send(ctx, c.transferClient, "ipfs add", "add", values, bodyReader, form.FormDataContentType())
	if err != nil {
		bodyReader.CloseWithError(err)
		if copyErr := <-copyDone; copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) {
			return AddResult{}, fmt.Errorf("reading %s: %w", fileName, copyErr)
		}
		return AddResult{}, err
	}
	defer response.Body.Close()

	var last addResponse
	decoder := json.NewDecoder(response.Body)
	for {
		var entry addResponse
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return AddResult{}, fmt.Errorf("failed to decode ipfs add response: %w", err)
		}
		if strings.TrimSpace(entry.Hash) != "" {
			last = entry
		}
	}
	bodyReader.Close()
	if copyErr := <-copyDone; copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) {
		return AddResult{}, fmt.Errorf("reading %s: %w", fileName, copyErr)
	}

	address := AddressFromURI(last.Hash)
	if address == "" {
		return AddResult{}, fmt.Errorf("ipfs add response did not include a hash")
	}
	size, _ := strconv.ParseInt(last.Size, 10, 64)

	result := AddResult{Address: address, URI: URIFromAddress(address), Size: size}
	c.logger.Debug().
		Str("name", fileName).
		Str("cid", result.Address).
		Int64("size", result.Size).
		Msg("added content to ipfs")
	return result, nil
}

// Cat opens the content stored at addressOrURI through the daemon.
func (c *Client) Cat(ctx context.Context, addressOrURI string) (io.ReadCloser, error) {
	address := AddressFromURI(addressOrURI)
	if address == "" {
		return nil, fmt.Errorf("content address is required")
	}

	values := url.Values{}
	values.Set("arg", address)
	response, err := c.send(ctx, c.transferClient, "ipfs cat", "cat", values, nil, "")
	if err != nil {
		return nil, err
	}
	return response.Body, nil
}

// Get returns the content stored at addressOrURI.
func (c *Client) Get(ctx context.Context, addressOrURI string) ([]byte, error) {
	body, err := c.Cat(ctx, addressOrURI)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &shared.NetworkError{Op: "ipfs cat", Retryable: true, Err: err}
	}
	return data, nil
}

// GetFromGateway fetches addressOrURI through the HTTP gateway, decoding
// brotli or gzip transfer compression.
func (c *Client) GetFromGateway(ctx context.Context, addressOrURI string) ([]byte, error) {
	address := AddressFromURI(addressOrURI)
	if address == "" {
		return nil, fmt.Errorf("content address is required")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURLFor(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Accept-Encoding", "br, gzip")
	for key, value := range c.headers {
		request.Header.Set(key, value)
	}

	response, err := c.transferClient.Do(request)
	if err != nil {
		return nil, &shared.NetworkError{Op: "ipfs gateway", Retryable: true, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, statusError("ipfs gateway", response)
	}

	var body io.Reader = response.Body
	switch strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding"))) {
	case "br":
		body = brotli.NewReader(response.Body)
	case "gzip":
		gzipReader, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode gateway response: %w", err)
		}
		defer gzipReader.Close()
		body = gzipReader
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &shared.NetworkError{Op: "ipfs gateway", Retryable: true, Err: err}
	}
	return data, nil
}

func (c *Client) call(
	ctx context.Context,
	op string,
	command string,
	values url.Values,
	body io.Reader,
	contentType string,
) (*http.Response, error) {
	return c.send(ctx, c.httpClient, op, command, values, body, contentType)
}

func (c *Client) send(
	ctx context.Context,
	client *http.Client,
	op string,
	command string,
	values url.Values,
	body io.Reader,
	contentType string,
) (*http.Response, error) {
	requestURL := c.apiURL + "/api/v0/" + command
	if encoded := values.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	for key, value := range c.headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, &shared.NetworkError{Op: op, Retryable: true, Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		return nil, statusError(op, response)
	}
	return response, nil
}

func statusError(op string, response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))
	message := strings.TrimSpace(string(raw))

	var decoded rpcError
	if err := json.Unmarshal(raw, &decoded); err == nil && strings.TrimSpace(decoded.Message) != "" {
		message = decoded.Message
	}
	if message == "" {
		message = http.StatusText(response.StatusCode)
	}

	return &shared.NetworkError{
		Op:        op,
		Status:    response.StatusCode,
		Retryable: response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests,
		Err:       errors.New(message),
	}
}

func normalizeBaseURL(raw string, fallback string) (string, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(raw), "/")
	if baseURL == "" {
		baseURL = fallback
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", fmt.Errorf("host is required")
	}
	return strings.TrimRight(parsed.String(), "/"), nil
}
