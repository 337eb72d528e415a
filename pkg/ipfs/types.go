package ipfs

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:5001"
	DefaultGatewayURL = "http://127.0.0.1:8080"
	DefaultTimeout    = 60 * time.Second

	URIPrefix = "ipfs://"
	PathRoot  = "/ipfs/"
)

type Config struct {
	APIURL     string
	GatewayURL string
	// HTTPClient replaces both default clients when set.
	HTTPClient *http.Client
	// Timeout bounds small RPC calls end to end. For add, cat and gateway
	// reads it only bounds the wait for response headers; bound the
	// transfer itself with a context deadline.
	Timeout time.Duration
	Headers map[string]string
	Pinning shared.PinningConfig
	Logger  *zerolog.Logger
}

// AddResult describes a blob stored by Add.
type AddResult struct {
	Address string `json:"cid"`
	URI     string `json:"uri"`
	Size    int64  `json:"size"`
}

// RemotePin is one entry reported by the pinning service.
type RemotePin struct {
	Status string `json:"Status"`
	Cid    string `json:"Cid"`
	Name   string `json:"Name"`
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

type rpcError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}
