package server

import (
	"net/http"

	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/idp"
	"github.com/dgellow/oauth-front/internal/registry"
)

// NewRouter assembles the broker's HTTP surface. The OAuth endpoints
// sit behind the CORS and recover middleware; /health stays bare so
// load-balancer probes see the raw handler.
func NewRouter(cfg config.Config, reg *registry.Registry, provider idp.Provider) (http.Handler, error) {
	mux := http.NewServeMux()

	oauthMiddleware := []MiddlewareFunc{
		NewCORSMiddleware(reg.AllowedOrigins()),
		NewRecoverMiddleware(),
	}

	mux.Handle("/oauth/login", ChainMiddleware(NewLoginHandler(cfg, reg, provider), oauthMiddleware...))
	mux.Handle("/oauth/callback", ChainMiddleware(NewCallbackHandler(cfg, reg, provider), oauthMiddleware...))
	mux.Handle("/health", NewHealthHandler())

	return mux, nil
}
