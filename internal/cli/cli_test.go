package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvcrn/cloudflare-api-proxy/internal/password"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fakeCloudflare(t *testing.T, response string) *[]string {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("CLOUDFLARE_API_BASE_URL", srv.URL)
	t.Setenv("CLOUDFLARE_API_TOKEN", "tok")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acc")
	t.Setenv("CLOUDFLARE_DATABASE_ID", "db")
	t.Setenv("CLOUDFLARE_KV_NAMESPACE_ID", "ns")
	return &paths
}

func TestPasswordCommands(t *testing.T) {
	out, err := run(t, "password", "hash", "hunter2")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	out, err = run(t, "password", "verify", "hunter2", hash)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, "password", "verify", "nope", hash)
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	require.NotPanics(t, func() {
		_, err = run(t, "password", "verify", "x", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA")
	})
	assert.ErrorIs(t, err, password.ErrMalformedHash)
}

func TestOTPCommand(t *testing.T) {
	t.Setenv("OTP_BOT", "JBSWY3DPEHPK3PXP")

	out, err := run(t, "otp", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "bot")

	out, err = run(t, "otp", "bot")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 6)

	_, err = run(t, "otp", "missing")
	assert.EqualError(t, err, "not found token")
}

func TestD1QueryCommand(t *testing.T) {
	paths := fakeCloudflare(t, `{"success":true,"result":[{"meta":{"changes":0},"results":[{"id":1}]}]}`)

	out, err := run(t, "d1", "query", "SELECT * FROM users WHERE id = ?", "--params", "[1]")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[{"id":1}],"execInfo":{"changes":0}}`, out)
	assert.Equal(t, []string{"POST /accounts/acc/d1/database/db/query"}, *paths)

	_, err = run(t, "d1", "exec", "SELECT 1", "--params", "[oops")
	assert.Error(t, err)
	assert.Len(t, *paths, 1)
}

func TestKVCommands(t *testing.T) {
	paths := fakeCloudflare(t, `{"success":true,"result":{"values":{},"successful_key_count":1,"unsuccessful_keys":[]}}`)

	_, err := run(t, "kv", "get", "missing")
	assert.EqualError(t, err, `key "missing" not found`)

	out, err := run(t, "kv", "put", "k", "v", "--ttl", "120")
	require.NoError(t, err)
	assert.Contains(t, out, `"successful_key_count": 1`)

	_, err = run(t, "kv", "put", "k", "v", "--ttl", "5")
	assert.Error(t, err)

	_, err = run(t, "kv", "delete", "a", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /accounts/acc/storage/kv/namespaces/ns/bulk/get",
		"PUT /accounts/acc/storage/kv/namespaces/ns/bulk",
		"POST /accounts/acc/storage/kv/namespaces/ns/bulk/delete",
	}, *paths)
}

func TestGatewayCommandsNeedCredentials(t *testing.T) {
	for _, key := range []string{"CLOUDFLARE_API_TOKEN", "CLOUDFLARE_ACCOUNT_ID", "CLOUDFLARE_DATABASE_ID", "CLOUDFLARE_KV_NAMESPACE_ID"} {
		t.Setenv(key, "")
	}

	_, err := run(t, "kv", "get", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLOUDFLARE_API_TOKEN")
}
