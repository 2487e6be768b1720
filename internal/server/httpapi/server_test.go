package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/logging"
	"github.com/dmitrijs2005/librarykeeper/internal/server/auth"
	"github.com/dmitrijs2005/librarykeeper/internal/server/metrics"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
	"github.com/dmitrijs2005/librarykeeper/internal/server/services"
)

// ---- fakes ----

type fakeAuth struct {
	mu sync.Mutex

	loginRes *services.AuthResult
	loginErr error
	gotLogin [2]string

	registerRes *services.AuthResult
	registerErr error
	gotRegister [3]string

	refreshRes *models.TokenPair
	refreshErr error

	revokeErr error
	revoked   []string

	meRes *models.PublicUser
	meErr error
	gotMe string
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*services.AuthResult, error) {
	f.gotLogin = [2]string{username, password}
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) Register(_ context.Context, username, email, password string) (*services.AuthResult, error) {
	f.gotRegister = [3]string{username, email, password}
	return f.registerRes, f.registerErr
}

func (f *fakeAuth) Refresh(context.Context, string) (*models.TokenPair, error) {
	return f.refreshRes, f.refreshErr
}

func (f *fakeAuth) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return f.revokeErr
}

func (f *fakeAuth) Me(_ context.Context, userID string) (*models.PublicUser, error) {
	f.gotMe = userID
	return f.meRes, f.meErr
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (f *fakeAudit) Record(_ context.Context, e models.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

// ---- helpers ----

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
	testRemoteAddr    = "192.0.2.10:54321"
)

func testCodec(accessTTL time.Duration) *auth.Codec {
	return auth.NewCodec(auth.CodecConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    time.Hour,
	})
}

func testOptions() Options {
	return Options{
		CORSOrigin:          "http://localhost:5173",
		MaxBodyBytes:        10 << 10,
		RateLimitWindow:     15 * time.Minute,
		RateLimitMax:        1000,
		AuthRateLimitWindow: 15 * time.Minute,
		AuthRateLimitMax:    1000,
		ShutdownTimeout:     time.Second,
	}
}

type testEnv struct {
	srv   *Server
	auth  *fakeAuth
	audit *fakeAudit
	codec *auth.Codec
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{auth: &fakeAuth{}, audit: &fakeAudit{}, codec: testCodec(15 * time.Minute)}
	env.srv = NewServer(opts, logging.Nop(), env.auth, env.codec, env.audit, fakePinger{}, metrics.New())
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	r.RemoteAddr = testRemoteAddr
	for k, v := range header {
		r.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, r)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (e *testEnv) bearer(t *testing.T) map[string]string {
	t.Helper()
	tok, err := e.codec.SignAccess(auth.AccessPayload{UserID: "u-1", Username: "alice", Role: common.RoleUser})
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func sampleResult() *services.AuthResult {
	return &services.AuthResult{
		User:   &models.PublicUser{ID: "u-1", Username: "alice", Email: "alice@example.com", Role: common.RoleUser},
		Tokens: &models.TokenPair{AccessToken: "a", RefreshToken: "r"},
	}
}

func fieldErrorsOf(body map[string]any) []FieldError {
	raw, _ := body["errors"].([]any)
	out := make([]FieldError, 0, len(raw))
	for _, v := range raw {
		m := v.(map[string]any)
		out = append(out, FieldError{Field: m["field"].(string), Message: m["message"].(string)})
	}
	return out
}

// ---- login ----

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.loginRes = sampleResult()

	rec, body := env.do(t, http.MethodPost, "/auth/login", `{"username":"  alice ","password":"secret1"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Login successful", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "a", data["tokens"].(map[string]any)["accessToken"])
	assert.Equal(t, "alice", data["user"].(map[string]any)["username"])
	assert.Equal(t, [2]string{"alice", "secret1"}, env.auth.gotLogin)

	require.Len(t, env.audit.entries, 1)
	assert.Equal(t, models.AuditEntry{
		UserID:    "u-1",
		Action:    models.ActionUserLogin,
		Resource:  "auth",
		IPAddress: "192.0.2.10",
	}, env.audit.entries[0])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.loginErr = common.ErrInvalidCredentials

	rec, body := env.do(t, http.MethodPost, "/auth/login", `{"username":"admin","password":"wrong-password"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid username or password", body["message"])
	assert.Empty(t, env.audit.entries)
}

func TestLogin_ValidationErrorsInFieldOrder(t *testing.T) {
	env := newTestEnv(t, testOptions())

	rec, body := env.do(t, http.MethodPost, "/auth/login", `{"password":"abc","username":"  "}`, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Equal(t, []FieldError{
		{Field: "username", Message: "Username is required"},
		{Field: "password", Message: "Password must be at least 6 characters"},
	}, fieldErrorsOf(body))
}

func TestLogin_NonObjectBody(t *testing.T) {
	env := newTestEnv(t, testOptions())

	rec, body := env.do(t, http.MethodPost, "/auth/login", `[1,2,3]`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Validation failed", body["message"])
}

func TestLogin_InternalErrorIsGeneric(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.loginErr = errors.New("connection reset by peer")

	rec, body := env.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected internal server error occurred", body["message"])
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

// ---- register ----

func TestRegister_IgnoresRole(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.registerRes = sampleResult()

	rec, body := env.do(t, http.MethodPost, "/auth/register",
		`{"username":"alice","email":" alice@example.com ","password":"secret1","role":"admin"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Registration successful", body["message"])
	assert.Equal(t, [3]string{"alice", "alice@example.com", "secret1"}, env.auth.gotRegister)
	require.Len(t, env.audit.entries, 1)
	assert.Equal(t, models.ActionUserRegister, env.audit.entries[0].Action)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []FieldError
	}{
		{
			name: "short username",
			body: `{"username":"ab","email":"a@b.co","password":"secret1"}`,
			want: []FieldError{{Field: "username", Message: "Username must be between 3 and 50 characters"}},
		},
		{
			name: "bad characters",
			body: `{"username":"al ice","email":"a@b.co","password":"secret1"}`,
			want: []FieldError{{Field: "username", Message: "Username can only contain letters, numbers, and underscores"}},
		},
		{
			name: "bad email",
			body: `{"username":"alice","email":"not-an-email","password":"secret1"}`,
			want: []FieldError{{Field: "email", Message: "Must be a valid email address"}},
		},
		{
			name: "everything missing",
			body: `{}`,
			want: []FieldError{
				{Field: "username", Message: "Username is required"},
				{Field: "email", Message: "Email is required"},
				{Field: "password", Message: "Password is required"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions())
			rec, body := env.do(t, http.MethodPost, "/auth/register", tt.body, nil)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tt.want, fieldErrorsOf(body))
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	tests := []struct {
		err error
		msg string
	}{
		{common.ErrDuplicateUsername, "Username already exists"},
		{common.ErrDuplicateEmail, "Email already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			env := newTestEnv(t, testOptions())
			env.auth.registerErr = tt.err

			rec, body := env.do(t, http.MethodPost, "/auth/register",
				`{"username":"alice","email":"alice@example.com","password":"secret1"}`, nil)

			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

// ---- refresh ----

func TestRefresh_Success(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.refreshRes = &models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}

	rec, body := env.do(t, http.MethodPost, "/auth/refresh", `{"refreshToken":"r1"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token refreshed successfully", body["message"])
	tokens := body["data"].(map[string]any)["tokens"].(map[string]any)
	assert.Equal(t, "r2", tokens["refreshToken"])

	require.Len(t, env.audit.entries, 1)
	assert.Equal(t, models.ActionTokenRefresh, env.audit.entries[0].Action)
	assert.Empty(t, env.audit.entries[0].UserID)
}

func TestRefresh_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"missing token", `{}`, nil, http.StatusUnprocessableEntity, "Validation failed"},
		{"empty token", `{"refreshToken":""}`, nil, http.StatusUnprocessableEntity, "Validation failed"},
		{"invalid", `{"refreshToken":"x"}`, common.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid or expired refresh token"},
		{"revoked", `{"refreshToken":"x"}`, common.ErrRevokedOrUnknownToken, http.StatusUnauthorized, "Refresh token has been revoked or does not exist"},
		{"user gone", `{"refreshToken":"x"}`, common.ErrUserGone, http.StatusUnauthorized, "User no longer exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions())
			env.auth.refreshErr = tt.err

			rec, body := env.do(t, http.MethodPost, "/auth/refresh", tt.body, nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, body["message"])
			assert.Empty(t, env.audit.entries)
		})
	}
}

func TestRefresh_MissingTokenMessage(t *testing.T) {
	env := newTestEnv(t, testOptions())
	_, body := env.do(t, http.MethodPost, "/auth/refresh", `{}`, nil)
	assert.Equal(t, []FieldError{{Field: "refreshToken", Message: "Refresh token is required"}}, fieldErrorsOf(body))
}

// ---- logout / me ----

func TestLogout_RequiresBearer(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		msg    string
	}{
		{"no header", nil, "Access token is required"},
		{"wrong scheme", map[string]string{"Authorization": "Token abc"}, "Access token is required"},
		{"garbage", map[string]string{"Authorization": "Bearer abc"}, "Invalid access token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions())

			rec, body := env.do(t, http.MethodPost, "/auth/logout", `{"refreshToken":"r1"}`, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.msg, body["message"])
			assert.Empty(t, env.auth.revoked)
			assert.Empty(t, env.audit.entries)
		})
	}
}

func TestLogout_ExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t, testOptions())
	tok, err := testCodec(-time.Minute).SignAccess(auth.AccessPayload{UserID: "u-1", Username: "alice", Role: common.RoleUser})
	require.NoError(t, err)

	rec, body := env.do(t, http.MethodPost, "/auth/logout", `{}`, map[string]string{"Authorization": "Bearer " + tok})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access token has expired", body["message"])
}

func TestLogout_RevokesWhenTokenGiven(t *testing.T) {
	env := newTestEnv(t, testOptions())

	rec, body := env.do(t, http.MethodPost, "/auth/logout", `{"refreshToken":"r1"}`, env.bearer(t))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", body["message"])
	data, present := body["data"]
	assert.True(t, present)
	assert.Nil(t, data)
	assert.Equal(t, []string{"r1"}, env.auth.revoked)

	require.Len(t, env.audit.entries, 1)
	assert.Equal(t, "u-1", env.audit.entries[0].UserID)
	assert.Equal(t, models.ActionUserLogout, env.audit.entries[0].Action)
}

func TestLogout_WithoutRefreshToken(t *testing.T) {
	env := newTestEnv(t, testOptions())

	rec, _ := env.do(t, http.MethodPost, "/auth/logout", "", env.bearer(t))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.auth.revoked)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.meRes = sampleResult().User

	rec, body := env.do(t, http.MethodGet, "/auth/me", "", env.bearer(t))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", env.auth.gotMe)
	assert.Equal(t, "alice@example.com", body["data"].(map[string]any)["user"].(map[string]any)["email"])
}

// ---- plumbing ----

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, testOptions())

	tests := []struct{ method, path, msg string }{
		{http.MethodGet, "/nope?x=1", "Route GET /nope?x=1 not found"},
		{http.MethodGet, "/auth/login", "Route GET /auth/login not found"},
		{http.MethodDelete, "/auth/unknown", "Route DELETE /auth/unknown not found"},
	}
	for _, tt := range tests {
		rec, body := env.do(t, tt.method, tt.path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, tt.path)
		assert.Equal(t, tt.msg, body["message"])
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testOptions())

	rec, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Server is healthy", body["message"])
	assert.NotEmpty(t, body["timestamp"])

	env.srv = NewServer(testOptions(), logging.Nop(), env.auth, env.codec, env.audit, fakePinger{err: errors.New("down")}, nil)
	rec, body = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.auth.loginErr = common.ErrInvalidCredentials
	env.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, nil)

	rec, _ := env.do(t, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `librarykeeper_auth_operations_total{operation="login",outcome="failure"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/auth/login"`)
}

func TestBodyTooLarge(t *testing.T) {
	opts := testOptions()
	opts.MaxBodyBytes = 64
	env := newTestEnv(t, opts)

	big := `{"username":"alice","password":"` + strings.Repeat("x", 200) + `"}`
	rec, _ := env.do(t, http.MethodPost, "/auth/login", big, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	opts := testOptions()
	opts.AuthRateLimitMax = 2
	env := newTestEnv(t, opts)
	env.auth.loginErr = common.ErrInvalidCredentials

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, body := env.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many authentication attempts, please try again later.", body["message"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Routes outside /auth are not subject to the auth limiter.
	rec, _ = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, testOptions())

	rec, _ := env.do(t, http.MethodOptions, "/auth/login", "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type, Authorization",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rec, _ = env.do(t, http.MethodGet, "/health", "", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = env.do(t, http.MethodGet, "/health", "", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_NoOriginConfigured(t *testing.T) {
	opts := testOptions()
	opts.CORSOrigin = ""
	env := newTestEnv(t, opts)

	rec, _ := env.do(t, http.MethodGet, "/health", "", map[string]string{"Origin": "http://localhost:5173"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ln, err := netListen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func netListen() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}
