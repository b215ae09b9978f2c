package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/cookie"
	"github.com/dgellow/oauth-front/internal/idp"
	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/registry"
	"github.com/dgellow/oauth-front/internal/state"
)

// CallbackHandler completes the OAuth flow. It validates the CSRF state
// against the cookie, exchanges the authorization code for an access
// token, and delivers the token to the originating frontend window.
// Every failure branch is terminal and fail-closed.
type CallbackHandler struct {
	cfg      config.Config
	registry *registry.Registry
	provider idp.Provider
}

// NewCallbackHandler creates a callback handler.
func NewCallbackHandler(cfg config.Config, reg *registry.Registry, provider idp.Provider) *CallbackHandler {
	return &CallbackHandler{
		cfg:      cfg,
		registry: reg,
		provider: provider,
	}
}

func (h *CallbackHandler) retryURL(project string) string {
	u := "/oauth/login"
	if project != "" {
		u += "?project=" + url.QueryEscape(project)
	}
	return u
}

// ServeHTTP implements http.Handler.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}

	if missing := h.cfg.Missing(); len(missing) > 0 {
		log.LogErrorWithFields("callback", "Refusing callback with incomplete configuration", map[string]any{
			"missing": missing,
		})
		jsonwriter.WriteConfigurationError(w, missing)
		return
	}

	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		message := provErr
		if desc := query.Get("error_description"); desc != "" {
			message = desc
		}
		log.LogWarnWithFields("callback", "Provider reported an authorization error", map[string]any{
			"error": provErr,
		})
		renderFailure(w, http.StatusBadRequest, FailurePageData{
			Title:    "Sign-in failed",
			Message:  "The identity provider reported an error: " + message,
			RetryURL: h.retryURL(""),
		})
		return
	}

	code := query.Get("code")
	stateParam := query.Get("state")
	if code == "" || stateParam == "" {
		renderFailure(w, http.StatusBadRequest, FailurePageData{
			Title:    "Sign-in failed",
			Message:  "Missing authorization code or state.",
			RetryURL: h.retryURL(""),
		})
		return
	}

	// The cookie and the state parameter must be byte-identical. A
	// mismatch or missing cookie means the callback was not initiated
	// by this browser's login request; never exchange the code.
	stored := cookie.GetState(r)
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(stateParam)) != 1 {
		log.LogWarnWithFields("callback", "State parameter does not match cookie", map[string]any{
			"cookiePresent": stored != "",
		})
		renderFailure(w, http.StatusForbidden, FailurePageData{
			Title:    "Sign-in blocked",
			Message:  "The request could not be verified. This may indicate a cross-site request forgery attempt. Please start again.",
			RetryURL: h.retryURL(""),
		})
		return
	}

	_, project := state.Split(stateParam)
	if project == "" {
		project = h.registry.DefaultProject()
	}
	origin := h.registry.ResolveOrigin(project)

	// The state is single use; expire the cookie before the exchange so
	// a replayed callback fails CSRF validation.
	cookie.ClearState(w)

	token, err := h.provider.ExchangeCode(r.Context(), code)
	if err != nil {
		h.renderExchangeFailure(w, project, err)
		return
	}

	log.LogInfoWithFields("callback", "Token delivered to frontend", map[string]any{
		"project": project,
		"origin":  origin,
	})
	renderSuccess(w, SuccessPageData{
		Token:  token,
		Origin: origin,
	})
}

func (h *CallbackHandler) renderExchangeFailure(w http.ResponseWriter, project string, err error) {
	var provErr *idp.ProviderError
	switch {
	case errors.As(err, &provErr):
		log.LogWarnWithFields("callback", "Provider rejected the code exchange", map[string]any{
			"error": provErr.Code,
		})
		renderFailure(w, http.StatusBadGateway, FailurePageData{
			Title:    "Sign-in failed",
			Message:  "The identity provider rejected the sign-in: " + provErr.Message(),
			RetryURL: h.retryURL(project),
		})
	case errors.Is(err, idp.ErrNoAccessToken):
		renderFailure(w, http.StatusBadGateway, FailurePageData{
			Title:    "Sign-in failed",
			Message:  "No access token received from the identity provider.",
			RetryURL: h.retryURL(project),
		})
	default:
		log.LogError("Token exchange failed: %v", err)
		renderFailure(w, http.StatusBadGateway, FailurePageData{
			Title:    "Sign-in failed",
			Message:  "Could not reach the identity provider. Please try again.",
			RetryURL: h.retryURL(project),
		})
	}
}
