// Package config loads the immutable service configuration from the
// environment. The loaded value is passed explicitly into each handler;
// nothing reads the environment after startup.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/dgellow/oauth-front/internal/state"
)

// ProjectMap maps project ids to frontend origins. Parsed from a
// comma-separated list of id=origin pairs.
type ProjectMap map[string]string

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (m *ProjectMap) UnmarshalText(text []byte) error {
	projects := make(ProjectMap)
	for _, pair := range strings.Split(string(text), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, origin, found := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		origin = strings.TrimSpace(origin)
		if !found || origin == "" {
			return fmt.Errorf("malformed project entry %q, want id=origin", pair)
		}
		if !state.ValidProjectID(id) {
			return fmt.Errorf("invalid project id %q, want lowercase [a-z0-9-]", id)
		}
		projects[id] = origin
	}
	*m = projects
	return nil
}

// Config holds everything the service needs for a request. Immutable
// after Load.
type Config struct {
	Addr           string     `env:"OAUTH_FRONT_ADDR" envDefault:":8080"`
	BaseURL        string     `env:"OAUTH_FRONT_BASE_URL" validate:"omitempty,url"`
	ClientID       string     `env:"GITHUB_CLIENT_ID"`
	ClientSecret   string     `env:"GITHUB_CLIENT_SECRET"`
	Scopes         string     `env:"OAUTH_FRONT_SCOPES" envDefault:"read:user"`
	DefaultProject string     `env:"OAUTH_FRONT_DEFAULT_PROJECT" envDefault:"create"`
	Projects       ProjectMap `env:"OAUTH_FRONT_PROJECTS" validate:"dive,url"`
	ExtraOrigins   []string   `env:"OAUTH_FRONT_ALLOWED_ORIGINS" envSeparator:"," validate:"dive,omitempty,url"`
	Environment    string     `env:"OAUTH_FRONT_ENV" envDefault:"production"`
	StateBytes     int        `env:"OAUTH_FRONT_STATE_BYTES" envDefault:"16"`
}

// Load parses and validates configuration from the environment. Missing
// credentials are not an error here: the service still starts and the
// handlers report them per request, so a misconfigured deployment
// surfaces an itemized 500 instead of crash-looping.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	if !state.ValidProjectID(cfg.DefaultProject) {
		return Config{}, fmt.Errorf("invalid default project id %q", cfg.DefaultProject)
	}

	return cfg, nil
}

// IsProduction gates the Secure cookie attribute and the loopback
// origin allowances.
func (c Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env != "development" && env != "dev"
}

// RedirectURI is the callback endpoint registered with the provider.
// It must match exactly on the authorize and token-exchange calls.
func (c Config) RedirectURI() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/oauth/callback"
}

// Missing itemizes absent required settings. Checked per request by
// both handlers; a non-empty result means the flow cannot run.
func (c Config) Missing() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}
	if c.BaseURL == "" {
		missing = append(missing, "OAUTH_FRONT_BASE_URL")
	}
	if len(c.Projects) == 0 {
		missing = append(missing, "OAUTH_FRONT_PROJECTS")
	} else if _, ok := c.Projects[c.DefaultProject]; !ok {
		missing = append(missing, "OAUTH_FRONT_PROJECTS entry for default project "+c.DefaultProject)
	}
	sort.Strings(missing)
	return missing
}
