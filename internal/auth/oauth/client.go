// Package oauth talks to a finance server's OAuth2 token endpoint.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single token-endpoint round trip.
const DefaultTimeout = 30 * time.Second

// Token is the credential pair returned by the token endpoint.
type Token struct {
	AccessToken  string
	RefreshToken string
}

// Client performs access-token and refresh-token exchanges against the
// OAuth endpoint of an arbitrary finance server.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a token-endpoint client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// config builds the oauth2 configuration for one server. Finance servers
// expose the standard authorize/token endpoints under /oauth.
func (c *Client) config(serverAddress, clientID, clientSecret, redirectURL string) *oauth2.Config {
	base := strings.TrimSuffix(serverAddress, "/")
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/oauth/authorize",
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationURL returns the URL the user must visit to authorize a
// provisional account, carrying the state correlation token.
func (c *Client) AuthorizationURL(serverAddress, clientID, clientSecret, redirectURL, state string) string {
	return c.config(serverAddress, clientID, clientSecret, redirectURL).AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, serverAddress, clientID, clientSecret, redirectURL, code string) (Token, error) {
	cfg := c.config(serverAddress, clientID, clientSecret, redirectURL)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return Token{}, fmt.Errorf("access token exchange: %w", err)
	}
	return Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// RefreshToken performs the refresh-token grant with the account's client
// credentials.
func (c *Client) RefreshToken(ctx context.Context, serverAddress, clientID, clientSecret, refreshToken string) (Token, error) {
	cfg := c.config(serverAddress, clientID, clientSecret, "")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, fmt.Errorf("refresh token grant: %w", err)
	}
	return Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// IsPermanentError reports whether a token-endpoint failure means the grant
// is gone for good and the user must re-authenticate, as opposed to a
// transient network problem worth retrying later.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
