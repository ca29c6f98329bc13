package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashFormat(t *testing.T) {
	encoded, err := Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=3,p=4$"), encoded)
	assert.Len(t, strings.Split(encoded, "$"), 6)
}

func TestVerifyRoundTrip(t *testing.T) {
	encoded, err := HashWithParams("correct horse", fastParams)
	require.NoError(t, err)

	ok, err := Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("battery staple", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	a, err := HashWithParams("same", fastParams)
	require.NoError(t, err)
	b, err := HashWithParams("same", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"bcrypt", "$2b$12$abcdefghijklmnopqrstuuVb4uvNfqHxxUudQXQ3f9K6IqKWHw2D6"},
		{"argon2i variant", "$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$v=16$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=x,t=3,p=4$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA"},
		{"missing hash", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$"},
		{"zero iterations", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA"},
		{"too many iterations", "$argon2id$v=19$m=65536,t=1000,p=4$c2FsdA$aGFzaA"},
		{"zero parallelism", "$argon2id$v=19$m=65536,t=3,p=0$c2FsdA$aGFzaA"},
		{"parallelism overflows uint8", "$argon2id$v=19$m=65536,t=3,p=256$c2FsdA$aGFzaA"},
		{"huge memory", "$argon2id$v=19$m=4294967295,t=3,p=4$c2FsdA$aGFzaA"},
		{"memory below 8 per lane", "$argon2id$v=19$m=16,t=3,p=4$c2FsdA$aGFzaA"},
		{"empty salt", "$argon2id$v=19$m=65536,t=3,p=4$$aGFzaA"},
		{"oversized hash", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$" + strings.Repeat("A", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				ok  bool
				err error
			)
			require.NotPanics(t, func() { ok, err = Verify("pw", tt.encoded) })
			assert.ErrorIs(t, err, ErrMalformedHash)
			assert.False(t, ok)
		})
	}
}
