package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvcrn/cloudflare-api-proxy/internal/auth"
	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/otp"
	"github.com/dvcrn/cloudflare-api-proxy/internal/password"
)

type d1Call struct {
	endpoint string
	sql      string
	params   []any
}

type fakeGateway struct {
	mu      sync.Mutex
	d1Calls []d1Call
	kv      map[string]string
	result  *cloudflare.D1Result
	err     error
	putOK   bool
}

func (f *fakeGateway) d1(endpoint, sql string, params []any) (*cloudflare.D1Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.d1Calls = append(f.d1Calls, d1Call{endpoint: endpoint, sql: sql, params: params})
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &cloudflare.D1Result{Rows: []map[string]any{}}, nil
}

func (f *fakeGateway) D1Query(_ context.Context, sql string, params []any) (*cloudflare.D1Result, error) {
	return f.d1("query", sql, params)
}

func (f *fakeGateway) D1Exec(_ context.Context, sql string, params []any) (*cloudflare.D1Result, error) {
	return f.d1("raw", sql, params)
}

func (f *fakeGateway) KVGet(_ context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.kv[key]
	return v, ok, nil
}

func (f *fakeGateway) KVPut(_ context.Context, key, value string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	f.kv[key] = value
	f.mu.Unlock()
	return f.putOK, nil
}

func (f *fakeGateway) KVDelete(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.kv[key]
	return ok, nil
}

type rpcCall struct {
	method string
	params any
}

type fakeRPC struct {
	calls []rpcCall
	reply string
	err   error
}

func (f *fakeRPC) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, rpcCall{method: method, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.reply), nil
}

type testEnv struct {
	srv     *Server
	gateway *fakeGateway
	rpc     *fakeRPC
	issuer  *auth.Issuer
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	issuer, err := auth.NewIssuer("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)
	token, _, err := issuer.Issue(1)
	require.NoError(t, err)

	gw := &fakeGateway{kv: map[string]string{"test_key": "test_value"}, putOK: true}
	rpc := &fakeRPC{reply: `{"ok":true}`}
	gen := otp.NewGenerator(map[string]string{"bot": "JBSWY3DPEHPK3PXP", "broken": "not-base32!"})

	srv := NewServer(Options{
		Gateway:         gw,
		Tokens:          issuer,
		OTP:             gen,
		Electron:        rpc,
		SwaggerUsername: "admin",
		SwaggerPassword: "admin888",
		AdminToken:      "admin-token",
		PublicPrefixes:  []string{"/api/auth/login", "/api/auth/password", "/api/d1/admin"},
	})

	return &testEnv{srv: srv, gateway: gw, rpc: rpc, issuer: issuer, token: token}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+e.token)
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+e.token)
	return e.do(t, req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing header", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"status":"401","errMsg":"Authorization header required"}`, rec.Body.String())
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := env.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := env.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, strings.HasPrefix(decode(t, rec)["errMsg"].(string), "Invalid token: "))
	})

	t.Run("valid token exposes uid", func(t *testing.T) {
		rec := env.get(t, "/api/auth/me")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"uid":1}`, rec.Body.String())
	})

	t.Run("public prefix needs no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/d1/admin", strings.NewReader("token=wrong&password=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := env.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decode(t, rec)["errMsg"])
		assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	})
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.SetBasicAuth("admin", "admin888")
	rec = env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, int64(1800), res.AccessTokenExpires)
	assert.True(t, res.Expire.After(time.Now()))

	uid, err := env.issuer.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), uid)
}

func TestD1Handlers(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		form       url.Values
		gwErr      error
		wantStatus int
		wantMsg    string
		wantCall   *d1Call
	}{
		{
			name:       "empty sql",
			path:       "/api/d1/query",
			form:       url.Values{"sql": {"  "}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "sql cannot be empty",
		},
		{
			name:       "json params",
			path:       "/api/d1/query",
			form:       url.Values{"sql": {"SELECT * FROM users WHERE id = ?"}, "params": {`[1, "a"]`}},
			wantStatus: http.StatusOK,
			wantCall:   &d1Call{endpoint: "query", sql: "SELECT * FROM users WHERE id = ?", params: []any{json.Number("1"), "a"}},
		},
		{
			name:       "comma separated params",
			path:       "/api/d1/exec",
			form:       url.Values{"sql": {"UPDATE users SET name = ? WHERE id = ?"}, "params": {"b,2"}},
			wantStatus: http.StatusOK,
			wantCall:   &d1Call{endpoint: "raw", sql: "UPDATE users SET name = ? WHERE id = ?", params: []any{"b", "2"}},
		},
		{
			name:       "broken json params",
			path:       "/api/d1/query",
			form:       url.Values{"sql": {"SELECT 1"}, "params": {"[1,"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "params must be a JSON array",
		},
		{
			name:       "upstream failure is hidden",
			path:       "/api/d1/query",
			form:       url.Values{"sql": {"SELECT 1"}},
			gwErr:      &cloudflare.StatusError{StatusCode: 403, Body: "secret detail"},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal server error",
		},
		{
			name:       "gateway validation is a bad request",
			path:       "/api/d1/exec",
			form:       url.Values{"sql": {"SELECT 1"}},
			gwErr:      errors.Wrap(cloudflare.ErrEmptySQL, "d1 raw"),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.gateway.err = tt.gwErr

			rec := env.postForm(t, tt.path, tt.form)
			assert.Equal(t, tt.wantStatus, rec.Code)

			body := decode(t, rec)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body["errMsg"])
			}
			if tt.wantCall != nil {
				require.Len(t, env.gateway.d1Calls, 1)
				assert.Equal(t, *tt.wantCall, env.gateway.d1Calls[0])
				assert.Equal(t, "200", body["status"])
				assert.Contains(t, body, "body")
			}
		})
	}
}

func TestD1QueryEnvelope(t *testing.T) {
	env := newTestEnv(t)
	duration, none := 1.0, int64(0)
	env.gateway.result = &cloudflare.D1Result{
		Rows:     []map[string]any{{"id": json.Number("1"), "name": "a"}},
		ExecInfo: cloudflare.ExecInfo{Duration: &duration, LastRowID: &none, Changes: &none},
	}

	rec := env.postForm(t, "/api/d1/query", url.Values{"sql": {"SELECT * FROM users;"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"200","body":{"rows":[{"id":1,"name":"a"}],"execInfo":{"duration":1,"last_row_id":0,"changes":0}}}`, rec.Body.String())
}

func TestD1Admin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/api/d1/admin", url.Values{"token": {"admin-token"}, "password": {"new-pass"}})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.gateway.d1Calls, 1)
	call := env.gateway.d1Calls[0]
	assert.Equal(t, "raw", call.endpoint)
	assert.Equal(t, resetPasswordSQL, call.sql)
	require.Len(t, call.params, 1)

	ok, err := password.Verify("new-pass", call.params[0].(string))
	require.NoError(t, err)
	assert.True(t, ok)

	rec = env.postForm(t, "/api/d1/admin", url.Values{"token": {"admin-token"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestD1AdminNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.srv.adminToken = ""

	rec := env.postForm(t, "/api/d1/admin", url.Values{"token": {""}, "password": {"x"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Admin API not configured", decode(t, rec)["errMsg"])
	assert.Empty(t, env.gateway.d1Calls)
}

func TestKVHandlers(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{"get found", "/api/kv/get", url.Values{"key": {"test_key"}}, http.StatusOK, `{"status":"200","body":"test_value"}`},
		{"get missing", "/api/kv/get", url.Values{"key": {"nope"}}, http.StatusOK, `{"status":"200","body":null}`},
		{"get empty key", "/api/kv/get", url.Values{"key": {" "}}, http.StatusBadRequest, `{"status":"400","errMsg":"key cannot be empty"}`},
		{"put", "/api/kv/put", url.Values{"key": {"k"}, "value": {"v"}}, http.StatusOK, `{"status":"200","body":true}`},
		{"put empty value", "/api/kv/put", url.Values{"key": {"k"}}, http.StatusBadRequest, `{"status":"400","errMsg":"value cannot be empty"}`},
		{"delete", "/api/kv/delete", url.Values{"key": {"test_key"}}, http.StatusOK, `{"status":"200","body":true}`},
		{"delete missing", "/api/kv/delete", url.Values{"key": {"other"}}, http.StatusOK, `{"status":"200","body":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.postForm(t, tt.path, tt.form)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestKVPutLargeValue(t *testing.T) {
	env := newTestEnv(t)
	value := strings.Repeat("a", 11<<20)

	rec := env.postForm(t, "/api/kv/put", url.Values{"key": {"big"}, "value": {value}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"200","body":true}`, rec.Body.String())
	assert.Len(t, env.gateway.kv["big"], 11<<20)
}

func TestFormBodyErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       io.Reader
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "body over limit",
			body:       io.MultiReader(strings.NewReader("key=k&value="), strings.NewReader(strings.Repeat("a", maxFormBytes))),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "request body too large",
		},
		{
			name:       "bad escape",
			body:       strings.NewReader("key=%zz&value=v"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid form body: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(http.MethodPost, "/api/kv/put", tt.body)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Authorization", "Bearer "+env.token)

			rec := env.do(t, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, strconv.Itoa(tt.wantStatus), body["status"])
			assert.True(t, strings.HasPrefix(body["errMsg"].(string), tt.wantMsg), body["errMsg"])
		})
	}
}

func TestKVGatewayError(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.err = errors.New("connection refused")

	rec := env.postForm(t, "/api/kv/put", url.Values{"key": {"k"}, "value": {"v"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"500","errMsg":"Internal server error"}`, rec.Body.String())
}

func TestOTPHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/api/utils/otp", url.Values{"token_index": {""}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "token_index cannot be empty", decode(t, rec)["errMsg"])

	rec = env.postForm(t, "/api/utils/otp", url.Values{"token_index": {"missing"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not found token", decode(t, rec)["errMsg"])

	rec = env.postForm(t, "/api/utils/otp", url.Values{"token_index": {"broken"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["errMsg"].(string), "Invalid TOKEN format: "))

	rec = env.postForm(t, "/api/utils/otp", url.Values{"token_index": {"bot"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "200", body["status"])
	assert.Len(t, body["otp"], 6)
}

func TestPasswordUtils(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/utils/password/gen?password=hunter2")
	require.Equal(t, http.StatusOK, rec.Code)

	var gen map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	assert.True(t, strings.HasPrefix(gen["password"], "$argon2id$v=19$"))
	assert.True(t, strings.HasPrefix(gen["password_base64"], "%24argon2id%24v%3D19%24"))

	rec = env.get(t, "/api/utils/password/verify?password=hunter2&password_hash="+url.QueryEscape(gen["password"]))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":true}`, rec.Body.String())

	rec = env.get(t, "/api/utils/password/verify?password=wrong&password_hash="+gen["password_base64"])
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":false}`, rec.Body.String())

	rec = env.get(t, "/api/utils/password/verify?password=x&password_hash=garbage")
	assert.JSONEq(t, `{"result":false}`, rec.Body.String())
}

func TestPasswordVerifyHostileCost(t *testing.T) {
	hashes := []string{
		"$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=0$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=4294967295,t=3,p=4$c2FsdA$aGFzaA",
	}

	env := newTestEnv(t)
	for _, hash := range hashes {
		t.Run(hash, func(t *testing.T) {
			rec := env.get(t, "/api/utils/password/verify?password=x&password_hash="+url.QueryEscape(hash))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"result":false}`, rec.Body.String())
		})
	}
}

func TestElectronRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantRPC    string
		wantParams any
	}{
		{"info sends null", http.MethodGet, "/api/electron/info", http.StatusOK, "info", nil},
		{"proxy list sends empty object", http.MethodGet, "/api/electron/proxy/list", http.StatusOK, "proxy_list", map[string]any{}},
		{"screenshot", http.MethodGet, "/api/electron/screenshot?win_id=3", http.StatusOK, "screenshot", map[string]any{"win_id": 3}},
		{"execute javascript", http.MethodGet, "/api/electron/executeJavaScript?code=1%2B1&win_id=2", http.StatusOK, "executeJavaScript", map[string]any{"code": "1+1", "win_id": 2}},
		{"set proxy", http.MethodPost, "/api/electron/proxy?url=http://p:1&account_index=0", http.StatusOK, "setProxy", map[string]any{"url": "http://p:1", "account_index": "0"}},
		{"get proxy", http.MethodGet, "/api/electron/proxy?account_index=0", http.StatusOK, "getProxy", map[string]any{"account_index": "0"}},
		{"win_id must be an integer", http.MethodGet, "/api/electron/getURL?win_id=abc", http.StatusBadRequest, "", nil},
		{"missing parameter", http.MethodGet, "/api/electron/openWindow?url=https://example.com", http.StatusBadRequest, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("Authorization", "Bearer "+env.token)
			rec := env.do(t, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantRPC == "" {
				assert.Empty(t, env.rpc.calls)
				return
			}
			require.Len(t, env.rpc.calls, 1)
			assert.Equal(t, tt.wantRPC, env.rpc.calls[0].method)
			if tt.wantParams == nil {
				assert.Nil(t, env.rpc.calls[0].params)
			} else {
				assert.Equal(t, tt.wantParams, env.rpc.calls[0].params)
			}
			assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
		})
	}
}

func TestElectronRPCFailure(t *testing.T) {
	env := newTestEnv(t)
	env.rpc.err = errors.New("dial tcp: connection refused")

	rec := env.get(t, "/api/electron/getWindows")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["errMsg"])
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/swagger", rec.Header().Get("Location"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, json.Valid(rec.Body.Bytes()))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	req.SetBasicAuth("admin", "admin888")
	rec = env.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cfapi_http_requests_total")
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = env.do(t, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
