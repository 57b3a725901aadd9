// Package token orchestrates OAuth token refresh for the current account.
package token

import (
	"context"
	"errors"
	"log"

	"github.com/pysugar/finance-nexus/internal/account"
	"github.com/pysugar/finance-nexus/internal/auth/oauth"
	"github.com/pysugar/finance-nexus/internal/concurrency"
	"github.com/pysugar/finance-nexus/internal/db/models"
)

// ErrAuthenticationProblem means the current account's authentication type
// cannot support a token refresh (PAT and local accounts have nothing to
// refresh).
var ErrAuthenticationProblem = errors.New("authentication type cannot refresh")

// Refresher exchanges the current account's refresh token for a new token
// pair and persists it. N concurrent callers share one refresh call and one
// persistence write; all receive the same outcome.
type Refresher struct {
	accounts *account.Repository
	oauth    *oauth.Client
	runner   concurrency.ControlledRunner[oauth.Token]
}

// NewRefresher creates a refresher over the account repository and the
// token-endpoint client.
func NewRefresher(accounts *account.Repository, oauthClient *oauth.Client) *Refresher {
	return &Refresher{accounts: accounts, oauth: oauthClient}
}

// Refresh returns a freshly persisted token pair for the current account.
// A refreshed token that cannot be durably stored is reported as failure:
// the next launch would otherwise re-use the stale persisted token.
func (r *Refresher) Refresh(ctx context.Context) (oauth.Token, error) {
	return r.runner.JoinPreviousOrRun(func() (oauth.Token, error) {
		return r.refresh(ctx)
	})
}

func (r *Refresher) refresh(ctx context.Context) (oauth.Token, error) {
	acc, err := r.accounts.CurrentAccount()
	if err != nil {
		return oauth.Token{}, err
	}

	auth, ok := acc.Auth().(models.OAuth)
	if !ok {
		return oauth.Token{}, ErrAuthenticationProblem
	}

	tok, err := r.oauth.RefreshToken(ctx, acc.ServerAddress, auth.ClientID, auth.ClientSecret, auth.RefreshToken)
	if err != nil {
		if oauth.IsPermanentError(err) {
			log.Printf("🔒 Refresh token for account %d rejected, re-login required: %v", acc.ID, err)
		} else {
			log.Printf("❌ Refresh token failed for account %d: %v", acc.ID, err)
		}
		return oauth.Token{}, err
	}

	// Persist rotated refresh token if provided (RFC 6749 compliance)
	if tok.RefreshToken == "" {
		tok.RefreshToken = auth.RefreshToken
	}

	acc.SetAuth(models.OAuth{
		AccessToken:  tok.AccessToken,
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		OAuthCode:    auth.OAuthCode,
		RefreshToken: tok.RefreshToken,
	})
	if err := r.accounts.UpdateAccount(acc); err != nil {
		log.Printf("⚠️ Failed to save refreshed token for account %d: %v", acc.ID, err)
		return oauth.Token{}, err
	}

	log.Printf("✅ Refreshed token for account %d", acc.ID)
	return tok, nil
}
