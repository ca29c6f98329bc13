// Package electron forwards RPC calls to the remote Electron browser, which
// accepts POST {"method": ..., "params": ...} and answers with JSON.
package electron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	serverhttp "github.com/dvcrn/cloudflare-api-proxy/internal/http"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
)

// DefaultRPCURL is where the Electron app listens by default.
const DefaultRPCURL = "http://127.0.0.1:3000/rpc"

const callTimeout = 30 * time.Second

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Client calls one Electron RPC endpoint.
type Client struct {
	httpClient serverhttp.HTTPClient
	url        string
}

// NewClient returns a client for rpcURL using httpClient for transport.
func NewClient(rpcURL string, httpClient serverhttp.HTTPClient) *Client {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	if httpClient == nil {
		httpClient = serverhttp.NewHTTPClient()
	}
	return &Client{httpClient: httpClient, url: rpcURL}
}

// Call invokes method with params and returns the raw JSON reply.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("could not marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read rpc response: %w", err)
	}

	logger.Get().Debug().
		Str("method", method).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Electron RPC call complete")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc %s failed with status %d: %s", method, resp.StatusCode, string(respBody))
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("rpc %s returned invalid JSON", method)
	}
	return json.RawMessage(respBody), nil
}
