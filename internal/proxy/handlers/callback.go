package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/pysugar/finance-nexus/internal/account"
	"github.com/pysugar/finance-nexus/internal/auth/oauth"
	"github.com/pysugar/finance-nexus/internal/config"
	"github.com/pysugar/finance-nexus/internal/db/models"
)

// CallbackHandler completes an OAuth onboarding flow. The state parameter
// correlates the redirect back to the provisional account row that started
// the flow; on success the row gets its tokens, loses its state, and
// becomes the current account.
func CallbackHandler(repo *account.Repository, oauthClient *oauth.Client, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if state == "" || code == "" {
			http.Error(w, "Missing state or code", http.StatusBadRequest)
			return
		}

		acc, err := repo.AccountByState(state)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				http.Error(w, "Invalid state token", http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		auth, ok := acc.Auth().(models.OAuth)
		if !ok {
			http.Error(w, "Account is not an OAuth account", http.StatusBadRequest)
			return
		}

		tok, err := oauthClient.ExchangeCode(
			r.Context(), acc.ServerAddress, auth.ClientID, auth.ClientSecret, cfg.RedirectURL, code)
		if err != nil {
			http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		acc.SetAuth(models.OAuth{
			AccessToken:  tok.AccessToken,
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			OAuthCode:    code,
			RefreshToken: tok.RefreshToken,
		})
		acc.State = ""
		if err := repo.UpdateAccount(acc); err != nil {
			http.Error(w, fmt.Sprintf("Failed to save account: %v", err), http.StatusInternalServerError)
			return
		}
		if err := repo.SetCurrentAccount(acc.ID); err != nil {
			http.Error(w, fmt.Sprintf("Failed to activate account: %v", err), http.StatusInternalServerError)
			return
		}

		log.Printf("✅ Completed OAuth login for account %d (%s)", acc.ID, acc.ServerAddress)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Login Successful</title>
</head>
<body>
	<h1>✅ Login Successful</h1>
	<p>Account %d is now active. You can close this window.</p>
</body>
</html>`, acc.ID)
	}
}
