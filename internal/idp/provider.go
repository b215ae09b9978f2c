// Package idp talks to the third-party identity provider: building the
// browser-facing authorization URL and redeeming authorization codes
// server-side. The client secret never leaves this package.
package idp

import (
	"context"
	"errors"
	"fmt"
)

// Provider abstracts the identity provider operations the broker needs.
type Provider interface {
	// Type returns the provider type identifier (e.g., "github").
	Type() string

	// AuthURL generates the authorization URL carrying the given state.
	AuthURL(state string) string

	// ExchangeCode redeems an authorization code for an access token.
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// ErrNoAccessToken indicates a well-formed exchange response that
// carried neither a token nor an error.
var ErrNoAccessToken = errors.New("no access token in provider response")

// ProviderError is an error the provider itself reported during the
// code exchange (expired code, bad client credentials, ...).
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// Message returns the user-presentable description of the failure.
func (e *ProviderError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}
