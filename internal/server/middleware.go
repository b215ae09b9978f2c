package server

import (
	"net/http"
	"slices"

	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// allowedOrigin picks the Access-Control-Allow-Origin value for a
// request: the request's own Origin when it is on the allow-list,
// otherwise the list's first entry. The fallback is documented
// behavior, not a security boundary; the browser enforces the real
// origin check.
func allowedOrigin(requestOrigin string, allowed []string) string {
	if len(allowed) == 0 {
		return ""
	}
	if requestOrigin != "" && slices.Contains(allowed, requestOrigin) {
		return requestOrigin
	}
	return allowed[0]
}

// NewCORSMiddleware adds CORS headers computed against the allow-list
// and answers preflight requests without touching the wrapped handler.
func NewCORSMiddleware(allowedOrigins []string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowedOrigin(r.Header.Get("Origin"), allowedOrigins); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRecoverMiddleware converts panics into a generic 500. The detail
// goes to the operator log only, never to the response body.
func NewRecoverMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.LogErrorWithFields("server", "Panic in request handler", map[string]any{
						"path":  r.URL.Path,
						"panic": rec,
					})
					jsonwriter.WriteInternalServerError(w, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
