// Package internal wires the oauth-front application together: config,
// project registry, identity provider, HTTP handlers, and lifecycle.
package internal

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/idp"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/registry"
	"github.com/dgellow/oauth-front/internal/server"
)

const shutdownTimeout = 30 * time.Second

// OAuthFront represents the complete broker application
type OAuthFront struct {
	config     config.Config
	httpServer *server.HTTPServer
}

// NewOAuthFront builds the application with all dependencies wired.
func NewOAuthFront(cfg config.Config) (*OAuthFront, error) {
	log.LogInfoWithFields("oauthfront", "Building OAuth broker", map[string]any{
		"baseURL":  cfg.BaseURL,
		"projects": len(cfg.Projects),
	})

	reg := registry.New(cfg.DefaultProject, cfg.Projects, cfg.ExtraOrigins, cfg.IsProduction())
	provider := idp.NewGitHubProvider(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI(), cfg.Scopes)

	mux, err := server.NewRouter(cfg, reg, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	return &OAuthFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(mux, cfg.Addr),
	}, nil
}

// Run starts the HTTP server and blocks until a shutdown signal or a
// server error, then drains gracefully.
func (o *OAuthFront) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := o.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		log.LogInfoWithFields("oauthfront", "Starting graceful shutdown", map[string]any{
			"timeout": shutdownTimeout.String(),
		})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return o.httpServer.Stop(shutdownCtx)
	})

	err := group.Wait()
	log.LogInfoWithFields("oauthfront", "Application shutdown complete", nil)
	return err
}
