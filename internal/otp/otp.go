// Package otp generates TOTP codes for named secrets from the configuration.
package otp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

var (
	// ErrUnknownToken means no secret is configured under the requested name.
	ErrUnknownToken = errors.New("not found token")
	// ErrInvalidSecret means the configured secret is not valid base32.
	ErrInvalidSecret = errors.New("invalid TOTP secret")
)

// Generator produces codes for a fixed set of secrets.
type Generator struct {
	secrets map[string]string
	now     func() time.Time
}

// NewGenerator indexes secrets by lower-cased name.
func NewGenerator(secrets map[string]string) *Generator {
	idx := make(map[string]string, len(secrets))
	for name, secret := range secrets {
		idx[strings.ToLower(name)] = secret
	}
	return &Generator{secrets: idx, now: time.Now}
}

// Names lists the configured secret names.
func (g *Generator) Names() []string {
	names := make([]string, 0, len(g.secrets))
	for name := range g.secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Code returns the current 6-digit code for name.
func (g *Generator) Code(name string) (string, error) {
	secret, ok := g.secrets[strings.ToLower(strings.TrimSpace(name))]
	if !ok || secret == "" {
		return "", ErrUnknownToken
	}

	// Authenticator apps tolerate spaces and lower case in shared secrets.
	secret = strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	code, err := totp.GenerateCode(secret, g.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return code, nil
}
