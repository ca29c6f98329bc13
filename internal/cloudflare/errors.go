package cloudflare

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingSuccess means the response envelope had no "success" field.
	ErrMissingSuccess = errors.New("cloudflare response has no success field")
	// ErrEmptyResult means D1 reported success but returned no statement result.
	ErrEmptyResult = errors.New("d1 response reported success with an empty result array")
	// ErrMalformedResponse means the body was not the JSON Cloudflare documents.
	ErrMalformedResponse = errors.New("malformed cloudflare response")

	ErrEmptySQL      = errors.New("sql cannot be empty")
	ErrInvalidParams = errors.New("params must be a JSON array")
	ErrEmptyKey      = errors.New("key cannot be empty")
	ErrKeyTooLong    = errors.New("key exceeds 512 bytes")
	ErrValueTooLarge = errors.New("value exceeds 25 MiB")
	ErrInvalidTTL    = errors.New("expiration_ttl must be at least 60 seconds")
	ErrTooManyKeys   = errors.New("too many keys for one bulk request")
)

// StatusError is returned when Cloudflare answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloudflare request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// IsValidation reports whether err was raised by local input checks, before
// any request was sent.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmptySQL, ErrInvalidParams, ErrEmptyKey, ErrKeyTooLong, ErrValueTooLarge, ErrInvalidTTL, ErrTooManyKeys} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
