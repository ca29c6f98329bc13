package cloudflare

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultAPIBaseURL is the Cloudflare v4 REST root.
const DefaultAPIBaseURL = "https://api.cloudflare.com/client/v4"

// KV limits documented for the bulk endpoints.
const (
	MaxKeyBytes        = 512
	MaxValueBytes      = 25 << 20
	MinExpirationTTL   = 60
	MaxBulkGetKeys     = 100
	MaxBulkWriteKeys   = 10000
	credentialsEnvHint = "CLOUDFLARE_ACCOUNT_ID, CLOUDFLARE_DATABASE_ID, CLOUDFLARE_KV_NAMESPACE_ID, CLOUDFLARE_API_TOKEN"
)

// Credentials identify the account, D1 database and KV namespace the gateway
// talks to. They are read once at startup.
type Credentials struct {
	AccountID   string
	DatabaseID  string
	NamespaceID string
	APIToken    string
}

// Validate reports an error naming every required variable when any is empty.
func (c Credentials) Validate() error {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, "account id")
	}
	if c.DatabaseID == "" {
		missing = append(missing, "database id")
	}
	if c.NamespaceID == "" {
		missing = append(missing, "kv namespace id")
	}
	if c.APIToken == "" {
		missing = append(missing, "api token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing cloudflare %s: please set %s environment variables",
			strings.Join(missing, ", "), credentialsEnvHint)
	}
	return nil
}

// APIMessage is an entry of the errors/messages arrays in every Cloudflare
// response envelope.
type APIMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Envelope is the common part of Cloudflare v4 responses.
type Envelope struct {
	Success  bool         `json:"success"`
	Errors   []APIMessage `json:"errors"`
	Messages []APIMessage `json:"messages"`
}

// D1Result is the normalized outcome of a D1 query or raw call. Rows is never
// nil.
type D1Result struct {
	Rows     []map[string]any `json:"rows"`
	ExecInfo ExecInfo         `json:"execInfo"`
}

// ExecInfo carries the execution stats from result[0].meta. Fields are nil
// when Cloudflare omitted them.
type ExecInfo struct {
	Duration  *float64 `json:"duration,omitempty"`
	LastRowID *int64   `json:"last_row_id,omitempty"`
	Changes   *int64   `json:"changes,omitempty"`
}

// KVEntry is one element of a bulk write.
type KVEntry struct {
	Key           string `json:"key"`
	Value         string `json:"value"`
	Base64        bool   `json:"base64,omitempty"`
	Expiration    int64  `json:"expiration,omitempty"`
	ExpirationTTL int64  `json:"expiration_ttl,omitempty"`
	Metadata      any    `json:"metadata,omitempty"`
}

// KVBulkGetResponse is the body returned by POST bulk/get.
type KVBulkGetResponse struct {
	Envelope
	Result struct {
		Values map[string]json.RawMessage `json:"values"`
	} `json:"result"`
}

// Value returns the value stored under key. Absent keys, null values and
// unsuccessful responses all report false. Non-string values are returned as
// their JSON text.
func (r *KVBulkGetResponse) Value(key string) (string, bool) {
	if r == nil || !r.Success {
		return "", false
	}
	raw, ok := r.Result.Values[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

// KVBulkWriteResponse is the body returned by PUT bulk and POST bulk/delete.
type KVBulkWriteResponse struct {
	Envelope
	Result struct {
		SuccessfulKeyCount int      `json:"successful_key_count"`
		UnsuccessfulKeys   []string `json:"unsuccessful_keys"`
	} `json:"result"`
}

// single reports whether exactly one key was written or deleted.
func (r *KVBulkWriteResponse) single() bool {
	return r != nil && r.Success && r.Result.SuccessfulKeyCount == 1
}
