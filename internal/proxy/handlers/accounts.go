package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pysugar/finance-nexus/internal/account"
	"github.com/pysugar/finance-nexus/internal/auth/oauth"
	"github.com/pysugar/finance-nexus/internal/config"
	"github.com/pysugar/finance-nexus/internal/db/models"
	"github.com/pysugar/finance-nexus/internal/util"
)

type accountView struct {
	ID            int64  `json:"id"`
	ServerAddress string `json:"serverAddress"`
	IsCurrent     bool   `json:"isCurrent"`
	AuthType      string `json:"authType"`
	AccessToken   string `json:"accessToken,omitempty"`
	Pending       bool   `json:"pending"`
}

func toAccountView(acc models.Account) accountView {
	return accountView{
		ID:            acc.ID,
		ServerAddress: acc.ServerAddress,
		IsCurrent:     acc.IsCurrent,
		AuthType:      acc.AuthType,
		AccessToken:   util.MaskToken(acc.AccessToken),
		Pending:       acc.State != "",
	}
}

// AccountsAPIHandler lists all stored accounts with tokens masked.
func AccountsAPIHandler(repo *account.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := repo.Accounts()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		views := make([]accountView, 0, len(accounts))
		for _, acc := range accounts {
			views = append(views, toAccountView(acc))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"accounts": views,
		})
	}
}

// CreateAccountHandler begins onboarding of a new account. PAT accounts are
// complete immediately and become current; OAuth accounts get a provisional
// row with a fresh state token and the caller is handed the authorization
// URL to visit.
func CreateAccountHandler(repo *account.Repository, oauthClient *oauth.Client, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ServerAddress string `json:"serverAddress"`
			AuthType      string `json:"authType"`
			AccessToken   string `json:"accessToken"`
			ClientID      string `json:"clientId"`
			ClientSecret  string `json:"clientSecret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ServerAddress == "" {
			writeError(w, http.StatusBadRequest, "serverAddress is required")
			return
		}

		switch req.AuthType {
		case models.AuthTypePAT:
			if req.AccessToken == "" {
				writeError(w, http.StatusBadRequest, "accessToken is required for pat accounts")
				return
			}
			id, err := repo.SaveAccount(account.SaveParams{
				ServerAddress: req.ServerAddress,
				Auth:          models.PersonalAccessToken{AccessToken: req.AccessToken},
				MakeCurrent:   true,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": id})

		case models.AuthTypeOAuth:
			if req.ClientID == "" || req.ClientSecret == "" {
				writeError(w, http.StatusBadRequest, "clientId and clientSecret are required for oauth accounts")
				return
			}
			state := uuid.New().String()
			id, err := repo.SaveAccount(account.SaveParams{
				ServerAddress: req.ServerAddress,
				Auth: models.OAuth{
					ClientID:     req.ClientID,
					ClientSecret: req.ClientSecret,
				},
				MakeCurrent: false,
				State:       state,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			authURL := oauthClient.AuthorizationURL(
				req.ServerAddress, req.ClientID, req.ClientSecret, cfg.RedirectURL, state)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":               id,
				"state":            state,
				"authorizationUrl": authURL,
			})

		default:
			writeError(w, http.StatusBadRequest, "authType must be oauth or pat")
		}
	}
}

// ActivateAccountHandler makes the given account current.
func ActivateAccountHandler(repo *account.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account id")
			return
		}

		if err := repo.SetCurrentAccount(id); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				writeError(w, http.StatusNotFound, "account not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	}
}

// LogoutHandler clears the current account. The access path refuses
// requests afterwards until another account is activated.
func LogoutHandler(repo *account.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := repo.ClearCurrentAccount(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	}
}

// RemoveStaleAccountsHandler runs the provisional-row sweep.
func RemoveStaleAccountsHandler(repo *account.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := repo.RemoveStaleAccounts(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": message},
	})
}
