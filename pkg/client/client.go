// Package client calls a running watcher's status API over its Unix domain
// socket and decodes the responses into the pkg/api and appconfig types.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/socket"
	"github.com/lc/confwatch/pkg/api"
)

// ErrNoConfig is returned by Config when the watcher has not loaded a valid
// configuration yet.
var ErrNoConfig = errors.New("watcher has no valid configuration")

// Client holds an http.Client wired to a Unix socket.
type Client struct {
	hc   *http.Client
	base string // placeholder scheme+host for Request.URL
}

// New returns a Client dialing socketPath with socket.DefaultConfig.
func New(socketPath string) *Client {
	return NewWithSocket(socket.New(socketPath, nil, nil))
}

// NewWithSocket returns a Client dialing through sock.
func NewWithSocket(sock *socket.Socket) *Client {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		return sock.Dial(ctx)
	}
	tr := &http.Transport{DialContext: dial, DisableKeepAlives: true}
	return &Client{hc: &http.Client{Transport: tr}, base: "http://unix"}
}

// Status retrieves the watcher's status.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.get(ctx, "/v1/status", &out)
	return out, err
}

// Config retrieves the watcher's current configuration.
func (c *Client) Config(ctx context.Context) (*appconfig.Config, error) {
	var out appconfig.Config
	if err := c.get(ctx, "/v1/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, socket.ErrNotRunning) {
			return socket.ErrNotRunning
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && path == "/v1/config":
		return ErrNoConfig
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("watcher returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
