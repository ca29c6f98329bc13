package http

import "net/http"

// HTTPClient is the outbound transport used for Cloudflare and Electron RPC
// calls. *http.Client satisfies it natively; Workers builds use fetch.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
