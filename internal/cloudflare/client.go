// Package cloudflare is the gateway to the Cloudflare D1 and KV REST APIs.
// It issues exactly one HTTPS call per operation and normalizes responses;
// it never retries.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	serverhttp "github.com/dvcrn/cloudflare-api-proxy/internal/http"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/metrics"
)

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 30 * time.Second

// Client talks to one D1 database and one KV namespace. It holds no mutable
// state and is safe for concurrent use.
type Client struct {
	httpClient serverhttp.HTTPClient
	token      string
	d1BaseURL  string
	kvBaseURL  string
	timeout    time.Duration
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	httpClient serverhttp.HTTPClient
}

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithHTTPClient overrides the outbound transport.
func WithHTTPClient(c serverhttp.HTTPClient) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// NewClient validates creds and builds a gateway client.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{baseURL: DefaultAPIBaseURL, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = serverhttp.NewHTTPClient()
	}

	base := strings.TrimRight(o.baseURL, "/")
	return &Client{
		httpClient: o.httpClient,
		token:      creds.APIToken,
		d1BaseURL:  fmt.Sprintf("%s/accounts/%s/d1/database/%s", base, creds.AccountID, creds.DatabaseID),
		kvBaseURL:  fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s", base, creds.AccountID, creds.NamespaceID),
		timeout:    o.timeout,
	}, nil
}

// fetch sends payload as JSON and returns the raw response body. Non-2xx
// responses become *StatusError.
func (c *Client) fetch(ctx context.Context, api, op, method, url string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.Get().Debug().
		Str("api", api).
		Str("op", op).
		Str("method", method).
		Str("url", url).
		Int("payload_bytes", len(bodyBytes)).
		Msg("Cloudflare request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(api, op, 0, time.Since(start))
		return nil, fmt.Errorf("request execution error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	metrics.ObserveUpstream(api, op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	logger.Get().Debug().
		Str("api", api).
		Str("op", op).
		Int("status_code", resp.StatusCode).
		Int("response_size", len(respBody)).
		Dur("duration", time.Since(start)).
		Msg("Cloudflare response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(respBody)}
	}
	return respBody, nil
}
