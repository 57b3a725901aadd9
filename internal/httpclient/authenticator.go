package httpclient

import (
	"context"
	"log"
	"net/http"

	"github.com/pysugar/finance-nexus/internal/auth/oauth"
	"github.com/pysugar/finance-nexus/internal/db/models"
)

const (
	headerAuthorizationKey   = "Authorization"
	headerAuthorizationValue = "Bearer"
	headerAcceptKey          = "Accept"
	headerAcceptValue        = "application/json"
)

// CurrentAccountReader supplies the point-in-time current account.
type CurrentAccountReader interface {
	CurrentAccount() (models.Account, error)
}

// TokenRefresher performs the single-flight token refresh.
type TokenRefresher interface {
	Refresh(ctx context.Context) (oauth.Token, error)
}

// AuthTransport authenticates every outgoing request with the current
// account's bearer token, and on a 401 response refreshes the token and
// retries the request exactly once. It blocks the calling goroutine while
// the refresh is in flight; the refresher guarantees only one underlying
// refresh call regardless of how many requests hit 401 at once.
type AuthTransport struct {
	base      http.RoundTripper
	accounts  CurrentAccountReader
	refresher TokenRefresher
}

// NewAuthTransport wraps base with bearer authentication and the one-shot
// refresh-and-retry behavior.
func NewAuthTransport(base http.RoundTripper, accounts CurrentAccountReader, refresher TokenRefresher) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{base: base, accounts: accounts, refresher: refresher}
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set(headerAcceptKey, headerAcceptValue)
	if tok := t.currentAccessToken(); tok != "" {
		out.Header.Set(headerAuthorizationKey, headerAuthorizationValue+" "+tok)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	retry := t.authenticate(out, resp)
	if retry == nil {
		// Give up: the caller sees the original 401.
		return resp, nil
	}
	resp.Body.Close()
	return t.base.RoundTrip(retry)
}

// currentAccessToken resolves the bearer token to attach outbound. An empty
// string means the request goes out unauthenticated.
func (t *AuthTransport) currentAccessToken() string {
	acc, err := t.accounts.CurrentAccount()
	if err != nil {
		return ""
	}
	switch auth := acc.Auth().(type) {
	case models.OAuth:
		return auth.AccessToken
	case models.PersonalAccessToken:
		return auth.AccessToken
	default:
		return ""
	}
}

// authenticate decides whether the failed response warrants a single retry
// with a refreshed token. A nil return means do not retry.
func (t *AuthTransport) authenticate(req *http.Request, resp *http.Response) *http.Request {
	acc, err := t.accounts.CurrentAccount()
	if err != nil {
		// No credentials to act on.
		return nil
	}

	if _, ok := acc.Auth().(models.OAuth); !ok {
		// PAT tokens cannot self-refresh; a 401 on a PAT account is
		// terminal.
		return nil
	}

	if resp.StatusCode != http.StatusUnauthorized {
		log.Printf("⚠️ Response code not handled: %d", resp.StatusCode)
		return nil
	}

	if req.Body != nil && req.GetBody == nil {
		// The first attempt consumed the body and there is no way to
		// rebuild it; a retry would reach the server with no content.
		log.Printf("⚠️ Request body cannot be replayed, not retrying")
		return nil
	}

	log.Printf("🔄 Token has expired, refreshing...")
	tok, err := t.refresher.Refresh(req.Context())
	if err != nil {
		log.Printf("❌ Token refresh failed: %v", err)
		return nil
	}
	if tok.AccessToken == "" {
		log.Printf("❌ Refreshed access token is empty")
		return nil
	}

	retry := req.Clone(req.Context())
	retry.Header.Del(headerAuthorizationKey)
	retry.Header.Set(headerAuthorizationKey, headerAuthorizationValue+" "+tok.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			log.Printf("❌ Cannot replay request body for retry: %v", err)
			return nil
		}
		retry.Body = body
	}
	return retry
}
