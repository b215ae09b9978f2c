package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/cookie"
	"github.com/dgellow/oauth-front/internal/idp"
	"github.com/dgellow/oauth-front/internal/registry"
)

// fakeProvider records exchanges so tests can prove fail-closed paths
// never reach the provider.
type fakeProvider struct {
	exchanges int
	token     string
	err       error
}

func (p *fakeProvider) Type() string { return "fake" }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.example.com/authorize?client_id=client-id&state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	p.exchanges++
	if p.err != nil {
		return "", p.err
	}
	return p.token, nil
}

func testConfig() config.Config {
	return config.Config{
		Addr:           ":8080",
		BaseURL:        "https://auth.example.com",
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		Scopes:         "read:user",
		DefaultProject: "create",
		Projects: config.ProjectMap{
			"create": "https://create.example.com",
			"studio": "https://studio.example.com",
		},
		Environment: "production",
		StateBytes:  16,
	}
}

func testRegistry(cfg config.Config) *registry.Registry {
	return registry.New(cfg.DefaultProject, cfg.Projects, cfg.ExtraOrigins, cfg.IsProduction())
}

func stateFromSetCookie(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	header := rec.Header().Get("Set-Cookie")
	require.NotEmpty(t, header, "expected a Set-Cookie header")
	value := cookie.Parse(header)[cookie.StateCookie]
	require.NotEmpty(t, value)
	return value
}

func TestLoginRedirectsToProvider(t *testing.T) {
	cfg := testConfig()
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login?project=create", nil))

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "provider.example.com", location.Host)

	stateParam := location.Query().Get("state")
	require.NotEmpty(t, stateParam)

	nonce, project, found := strings.Cut(stateParam, ":")
	require.True(t, found)
	assert.Equal(t, "create", project)
	assert.Len(t, nonce, 32)

	// The cookie and the state parameter must carry the same token
	assert.Equal(t, stateParam, stateFromSetCookie(t, rec))

	setCookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "Secure")
	assert.Contains(t, setCookie, "SameSite=Lax")
	assert.Contains(t, setCookie, "Max-Age=600")
}

func TestLoginDefaultsProject(t *testing.T) {
	cfg := testConfig()
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	_, project := splitState(t, rec)
	assert.Equal(t, "create", project)
}

func TestLoginAcceptsUnknownProject(t *testing.T) {
	cfg := testConfig()
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login?project=mystery", nil))

	// Unknown projects do not abort the login request
	require.Equal(t, http.StatusFound, rec.Code)
	_, project := splitState(t, rec)
	assert.Equal(t, "mystery", project)
}

func splitState(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	nonce, project, _ := strings.Cut(location.Query().Get("state"), ":")
	return nonce, project
}

func TestLoginGeneratesUniqueStates(t *testing.T) {
	cfg := testConfig()
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	firstNonce, _ := splitState(t, first)
	secondNonce, _ := splitState(t, second)
	assert.NotEqual(t, firstNonce, secondNonce)
}

func TestLoginInsecureCookieOutsideProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "development"
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	assert.NotContains(t, rec.Header().Get("Set-Cookie"), "Secure")
}

func TestLoginRejectsOtherMethods(t *testing.T) {
	cfg := testConfig()
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/oauth/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
}

func TestLoginConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = ""
	cfg.ClientSecret = ""
	handler := NewLoginHandler(cfg, testRegistry(cfg), &fakeProvider{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "GITHUB_CLIENT_ID")
	assert.Contains(t, rec.Body.String(), "GITHUB_CLIENT_SECRET")
}

func callbackRequest(target, cookieValue string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookieValue != "" {
		req.Header.Set("Cookie", cookie.Encode(cookie.StateCookie, cookieValue, cookie.Attributes{}))
	}
	return req
}

func TestCallbackDeliversToken(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	stateToken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:create"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), stateToken))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, provider.exchanges)

	body := rec.Body.String()
	assert.Contains(t, body, `"tok123"`)
	assert.Contains(t, body, `"https://create.example.com"`)
	assert.Contains(t, body, "postMessage")
	assert.NotContains(t, body, `"*"`)

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

	// State cookie is consumed
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=-1")
}

func TestCallbackRoutesToStateProject(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	stateToken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:studio"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), stateToken))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"https://studio.example.com"`)
}

func TestCallbackUnknownProjectFallsBackToDefault(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	stateToken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:mystery"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), stateToken))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"https://create.example.com"`)
}

func TestCallbackCSRFMismatch(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest(
		"/oauth/callback?code=abc&state="+url.QueryEscape("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx:create"),
		"yyyyyyyyyyyyyyyyyyyyyyyyyyyyyyyy:create",
	))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forgery")
	assert.Equal(t, 0, provider.exchanges, "token exchange must not run on CSRF mismatch")
}

func TestCallbackCSRFSingleCharacterMutation(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	stateToken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:create"
	mutated := "baaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:create"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(mutated), stateToken))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, provider.exchanges)
}

func TestCallbackMissingCookie(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state=aaaa:create", ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, provider.exchanges)
}

func TestCallbackMissingParameters(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	for _, target := range []string{
		"/oauth/callback",
		"/oauth/callback?code=abc",
		"/oauth/callback?state=aaaa:create",
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, callbackRequest(target, "aaaa:create"))

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Missing authorization code or state", target)
	}
	assert.Equal(t, 0, provider.exchanges)
}

func TestCallbackProviderDenial(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?error=access_denied", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
	assert.Equal(t, 0, provider.exchanges, "denial must not trigger a token exchange")
}

func TestCallbackExchangeError(t *testing.T) {
	cfg := testConfig()
	stateToken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:create"

	t.Run("provider_reported_error", func(t *testing.T) {
		provider := &fakeProvider{err: &idp.ProviderError{Code: "bad_verification_code", Description: "code expired"}}
		handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), stateToken))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "code expired")
	})

	t.Run("missing_access_token", func(t *testing.T) {
		provider := &fakeProvider{err: idp.ErrNoAccessToken}
		handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), stateToken))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "No access token received")
	})

	t.Run("network_failure", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("dial tcp: connection refused")}
		handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), stateToken))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		// Internal detail stays out of the response body
		assert.NotContains(t, rec.Body.String(), "dial tcp")
	})
}

func TestCallbackConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = ""
	cfg.ClientSecret = ""
	provider := &fakeProvider{token: "tok123"}
	handler := NewCallbackHandler(cfg, testRegistry(cfg), provider)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/oauth/callback?code=abc&state=aaaa:create", "aaaa:create"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "GITHUB_CLIENT_ID")
	assert.Contains(t, rec.Body.String(), "GITHUB_CLIENT_SECRET")
	assert.Equal(t, 0, provider.exchanges)
}

func TestFullFlowThroughRouter(t *testing.T) {
	cfg := testConfig()
	provider := &fakeProvider{token: "tok123"}
	router, err := NewRouter(cfg, testRegistry(cfg), provider)
	require.NoError(t, err)

	// Login
	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, httptest.NewRequest(http.MethodGet, "/oauth/login?project=studio", nil))
	require.Equal(t, http.StatusFound, loginRec.Code)
	stateToken := stateFromSetCookie(t, loginRec)

	// Callback with the issued cookie and matching state
	callbackRec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state="+url.QueryEscape(stateToken), nil)
	req.Header.Set("Cookie", loginRec.Header().Get("Set-Cookie"))
	router.ServeHTTP(callbackRec, req)

	require.Equal(t, http.StatusOK, callbackRec.Code)
	assert.Contains(t, callbackRec.Body.String(), `"https://studio.example.com"`)
	assert.Contains(t, callbackRec.Body.String(), `"tok123"`)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := testConfig()
	router, err := NewRouter(cfg, testRegistry(cfg), &fakeProvider{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
