package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

type kvBulkGetRequest struct {
	Keys []string `json:"keys"`
}

// KVGet returns the value stored under key. found is false when the key is
// absent or the bulk response reports failure.
func (c *Client) KVGet(ctx context.Context, key string) (value string, found bool, err error) {
	res, err := c.KVGetBatch(ctx, []string{key})
	if err != nil {
		return "", false, err
	}
	value, found = res.Value(key)
	return value, found, nil
}

// KVGetBatch fetches up to MaxBulkGetKeys keys in one call.
func (c *Client) KVGetBatch(ctx context.Context, keys []string) (*KVBulkGetResponse, error) {
	if len(keys) > MaxBulkGetKeys {
		return nil, errors.Wrapf(ErrTooManyKeys, "%d keys, limit %d", len(keys), MaxBulkGetKeys)
	}
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return nil, err
		}
	}

	body, err := c.fetch(ctx, "kv", "bulk_get", http.MethodPost, c.kvBaseURL+"/bulk/get", kvBulkGetRequest{Keys: keys})
	if err != nil {
		return nil, err
	}

	var res KVBulkGetResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return &res, nil
}

// KVPut stores a single key. It reports true only when Cloudflare confirms
// exactly one key was written.
func (c *Client) KVPut(ctx context.Context, key, value string) (bool, error) {
	res, err := c.KVPutBatch(ctx, []KVEntry{{Key: key, Value: value}})
	if err != nil {
		return false, err
	}
	return res.single(), nil
}

// KVPutBatch writes entries in one call.
func (c *Client) KVPutBatch(ctx context.Context, entries []KVEntry) (*KVBulkWriteResponse, error) {
	if len(entries) > MaxBulkWriteKeys {
		return nil, errors.Wrapf(ErrTooManyKeys, "%d entries, limit %d", len(entries), MaxBulkWriteKeys)
	}
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
	}
	return c.bulkWrite(ctx, "bulk_put", http.MethodPut, c.kvBaseURL+"/bulk", entries)
}

// KVDelete removes a single key with the same success contract as KVPut.
func (c *Client) KVDelete(ctx context.Context, key string) (bool, error) {
	res, err := c.KVDeleteBatch(ctx, []string{key})
	if err != nil {
		return false, err
	}
	return res.single(), nil
}

// KVDeleteBatch removes keys in one call.
func (c *Client) KVDeleteBatch(ctx context.Context, keys []string) (*KVBulkWriteResponse, error) {
	if len(keys) > MaxBulkWriteKeys {
		return nil, errors.Wrapf(ErrTooManyKeys, "%d keys, limit %d", len(keys), MaxBulkWriteKeys)
	}
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return nil, err
		}
	}
	return c.bulkWrite(ctx, "bulk_delete", http.MethodPost, c.kvBaseURL+"/bulk/delete", keys)
}

func (c *Client) bulkWrite(ctx context.Context, op, method, url string, payload any) (*KVBulkWriteResponse, error) {
	body, err := c.fetch(ctx, "kv", op, method, url, payload)
	if err != nil {
		return nil, err
	}

	var res KVBulkWriteResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return &res, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) > MaxKeyBytes {
		return errors.Wrapf(ErrKeyTooLong, "key is %d bytes", len(key))
	}
	return nil
}

func validateEntry(e KVEntry) error {
	if err := validateKey(e.Key); err != nil {
		return err
	}
	if len(e.Value) > MaxValueBytes {
		return errors.Wrapf(ErrValueTooLarge, "value for %q is %d bytes", e.Key, len(e.Value))
	}
	if e.ExpirationTTL != 0 && e.ExpirationTTL < MinExpirationTTL {
		return errors.Wrapf(ErrInvalidTTL, "got %d for %q", e.ExpirationTTL, e.Key)
	}
	return nil
}
