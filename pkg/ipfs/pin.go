package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

var activePinStatuses = []string{"queued", "pinning", "pinned"}

// Pin asks the configured remote pinning service to retain addressOrURI.
// Content that is already pinned, queued or pinning is left alone.
func (c *Client) Pin(ctx context.Context, addressOrURI string) error {
	address, err := c.pinTarget(addressOrURI)
	if err != nil {
		return err
	}

	pinned, err := c.IsPinned(ctx, address)
	if err != nil {
		return err
	}
	if pinned {
		c.logger.Debug().
			Str("cid", address).
			Str("service", c.pinning.Name).
			Msg("content already pinned")
		return nil
	}

	values := url.Values{}
	values.Set("arg", address)
	values.Set("service", c.serviceName())
	values.Set("background", "true")
	response, err := c.call(ctx, "ipfs pin remote add", "pin/remote/add", values, nil, "")
	if err != nil {
		return err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	c.logger.Info().
		Str("cid", address).
		Str("service", c.pinning.Name).
		Msg("requested remote pin")
	return nil
}

// Unpin removes every remote pin for addressOrURI.
func (c *Client) Unpin(ctx context.Context, addressOrURI string) error {
	address, err := c.pinTarget(addressOrURI)
	if err != nil {
		return err
	}
	if err := c.ensureService(ctx); err != nil {
		return err
	}

	values := url.Values{}
	values.Set("service", c.serviceName())
	values.Set("cid", address)
	values.Set("force", "true")
	for _, status := range activePinStatuses {
		values.Add("status", status)
	}
	response, err := c.call(ctx, "ipfs pin remote rm", "pin/remote/rm", values, nil, "")
	if err != nil {
		return err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

// IsPinned reports whether the remote service holds a queued, pinning or
// pinned entry for addressOrURI.
func (c *Client) IsPinned(ctx context.Context, addressOrURI string) (bool, error) {
	pins, err := c.RemotePins(ctx, addressOrURI)
	if err != nil {
		return false, err
	}
	return len(pins) > 0, nil
}

// RemotePins lists the remote service's entries for addressOrURI.
func (c *Client) RemotePins(ctx context.Context, addressOrURI string) ([]RemotePin, error) {
	address, err := c.pinTarget(addressOrURI)
	if err != nil {
		return nil, err
	}
	if err := c.ensureService(ctx); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("service", c.serviceName())
	values.Set("cid", address)
	for _, status := range activePinStatuses {
		values.Add("status", status)
	}
	response, err := c.call(ctx, "ipfs pin remote ls", "pin/remote/ls", values, nil, "")
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	pins := make([]RemotePin, 0)
	decoder := json.NewDecoder(response.Body)
	for {
		var pin RemotePin
		if err := decoder.Decode(&pin); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode remote pin list: %w", err)
		}
		if AddressFromURI(pin.Cid) == address {
			pins = append(pins, pin)
		}
	}
	return pins, nil
}

func (c *Client) pinTarget(addressOrURI string) (string, error) {
	if !c.pinning.Complete() {
		return "", &shared.ConfigurationError{
			Setting: "pinning",
			Message: "service name, endpoint and key are required to pin content",
		}
	}
	address := AddressFromURI(addressOrURI)
	if !IsContentAddress(address) {
		return "", fmt.Errorf("invalid content address %q", addressOrURI)
	}
	root, _, _ := strings.Cut(address, "/")
	return root, nil
}

func (c *Client) serviceName() string {
	return strings.TrimSpace(c.pinning.Name)
}

// ensureService registers the pinning service with the daemon once per
// service name. A daemon that already knows the service counts as success.
func (c *Client) ensureService(ctx context.Context) error {
	name := c.serviceName()

	c.serviceMutex.Lock()
	defer c.serviceMutex.Unlock()

	if c.configuredServices[name] {
		return nil
	}

	values := url.Values{}
	values.Add("arg", name)
	values.Add("arg", strings.TrimSpace(c.pinning.Endpoint))
	values.Add("arg", strings.TrimSpace(c.pinning.Key))
	response, err := c.call(ctx, "ipfs pin remote service add", "pin/remote/service/add", values, nil, "")
	if err != nil {
		if !isAlreadyConfigured(err) {
			return err
		}
		c.logger.Debug().Str("service", name).Msg("pinning service already configured")
	} else {
		response.Body.Close()
		c.logger.Info().Str("service", name).Msg("configured remote pinning service")
	}

	c.configuredServices[name] = true
	return nil
}

func isAlreadyConfigured(err error) bool {
	var networkErr *shared.NetworkError
	if !errors.As(err, &networkErr) || networkErr.Err == nil {
		return false
	}
	message := strings.ToLower(networkErr.Err.Error())
	return strings.Contains(message, "already present") || strings.Contains(message, "already exists")
}
