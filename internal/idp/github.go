package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// exchangeTimeout bounds the outbound token-exchange call so an
// unresponsive provider cannot hold callback requests open.
const exchangeTimeout = 10 * time.Second

// GitHubProvider implements Provider for GitHub OAuth. The token
// exchange is done by hand because the broker's provider contract is a
// JSON body with a JSON response, not the form encoding
// oauth2.Config.Exchange produces.
type GitHubProvider struct {
	config   oauth2.Config
	tokenURL string // defaults to GitHub's token endpoint, overridden in tests
	client   *http.Client
}

// tokenRequest is the server-to-server exchange payload.
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
}

// tokenResponse covers both the success and error shapes of the
// provider's token endpoint.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// NewGitHubProvider creates a GitHub OAuth provider. scopes is the
// space-separated scope string requested at authorization time.
func NewGitHubProvider(clientID, clientSecret, redirectURI, scopes string) *GitHubProvider {
	return &GitHubProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       strings.Fields(scopes),
			Endpoint:     github.Endpoint,
		},
		tokenURL: github.Endpoint.TokenURL,
		client:   &http.Client{Timeout: exchangeTimeout},
	}
}

// Type returns the provider type.
func (p *GitHubProvider) Type() string {
	return "github"
}

// AuthURL generates the authorization URL carrying the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode redeems an authorization code for an access token.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	body, err := json.Marshal(tokenRequest{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		Code:         code,
		RedirectURI:  p.config.RedirectURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	if token.Error != "" {
		return "", &ProviderError{Code: token.Error, Description: token.ErrorDescription}
	}
	if token.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return token.AccessToken, nil
}
