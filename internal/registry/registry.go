// Package registry resolves project ids to their registered frontend
// origins and exposes the CORS allow-list derived from them.
package registry

import (
	"sort"

	"github.com/dgellow/oauth-front/internal/log"
)

// loopbackOrigins are appended to the allow-list outside production so
// local frontend dev servers can drive the flow.
var loopbackOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// Registry is the immutable project table. Built once from config and
// shared read-only across requests.
type Registry struct {
	defaultProject string
	origins        map[string]string
	extraOrigins   []string
	production     bool
}

// New builds a Registry. projects maps project id to frontend origin;
// extraOrigins are operator-configured additions to the allow-list.
func New(defaultProject string, projects map[string]string, extraOrigins []string, production bool) *Registry {
	origins := make(map[string]string, len(projects))
	for id, origin := range projects {
		origins[id] = origin
	}
	return &Registry{
		defaultProject: defaultProject,
		origins:        origins,
		extraOrigins:   extraOrigins,
		production:     production,
	}
}

// DefaultProject returns the configured default project id.
func (r *Registry) DefaultProject() string {
	return r.defaultProject
}

// Known reports whether id is a registered project.
func (r *Registry) Known(id string) bool {
	_, ok := r.origins[id]
	return ok
}

// ResolveOrigin maps a project id to its registered frontend origin.
// Unknown or empty ids resolve to the default project's origin with a
// warning rather than failing, so a malformed state token degrades to
// the default frontend instead of a dead end.
func (r *Registry) ResolveOrigin(id string) string {
	if origin, ok := r.origins[id]; ok {
		return origin
	}
	if id != "" {
		log.LogWarnWithFields("registry", "Unknown project, falling back to default", map[string]any{
			"project": id,
			"default": r.defaultProject,
		})
	}
	return r.origins[r.defaultProject]
}

// AllowedOrigins returns the CORS allow-list in deterministic order:
// the default project's origin first, remaining registered origins
// sorted, then operator extras, then loopback origins outside
// production. The first entry doubles as the fallback value for
// requests whose Origin is not on the list.
func (r *Registry) AllowedOrigins() []string {
	allowed := make([]string, 0, len(r.origins)+len(r.extraOrigins)+len(loopbackOrigins))

	if origin, ok := r.origins[r.defaultProject]; ok {
		allowed = append(allowed, origin)
	}

	rest := make([]string, 0, len(r.origins))
	for id, origin := range r.origins {
		if id == r.defaultProject {
			continue
		}
		rest = append(rest, origin)
	}
	sort.Strings(rest)
	allowed = append(allowed, rest...)

	allowed = append(allowed, r.extraOrigins...)

	if !r.production {
		allowed = append(allowed, loopbackOrigins...)
	}
	return allowed
}
