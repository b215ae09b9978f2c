package server

import (
	"net/http"

	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/cookie"
	"github.com/dgellow/oauth-front/internal/idp"
	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/registry"
	"github.com/dgellow/oauth-front/internal/state"
)

// LoginHandler starts the OAuth flow: it mints the CSRF state token,
// binds it into a cookie, and redirects the browser to the provider's
// authorization endpoint. No server-side state is retained.
type LoginHandler struct {
	cfg      config.Config
	registry *registry.Registry
	provider idp.Provider
	stateGen state.Generator
}

// NewLoginHandler creates a login handler.
func NewLoginHandler(cfg config.Config, reg *registry.Registry, provider idp.Provider) *LoginHandler {
	return &LoginHandler{
		cfg:      cfg,
		registry: reg,
		provider: provider,
		stateGen: state.NewGenerator(cfg.StateBytes),
	}
}

// ServeHTTP implements http.Handler. Preflight requests are answered by
// the CORS middleware before reaching here.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}

	if missing := h.cfg.Missing(); len(missing) > 0 {
		log.LogErrorWithFields("login", "Refusing login with incomplete configuration", map[string]any{
			"missing": missing,
		})
		jsonwriter.WriteConfigurationError(w, missing)
		return
	}

	project := r.URL.Query().Get("project")
	if project == "" {
		project = h.registry.DefaultProject()
	}
	// Unknown projects are accepted leniently at login time. If the id
	// truly cannot be resolved the callback falls back to the default
	// project's origin.
	if !h.registry.Known(project) {
		log.LogWarnWithFields("login", "Login requested for unknown project", map[string]any{
			"project": project,
		})
	}

	token, err := h.stateGen.Generate(project)
	if err != nil {
		log.LogError("Failed to generate state token: %v", err)
		jsonwriter.WriteInternalServerError(w, "failed to start login flow")
		return
	}

	cookie.SetState(w, token, h.cfg.IsProduction())

	authURL := h.provider.AuthURL(token)
	log.LogInfoWithFields("login", "Redirecting to provider", map[string]any{
		"project":  project,
		"provider": h.provider.Type(),
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}
