package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/finance-nexus/internal/account"
	"github.com/pysugar/finance-nexus/internal/auth/oauth"
	"github.com/pysugar/finance-nexus/internal/auth/token"
	"github.com/pysugar/finance-nexus/internal/config"
	"github.com/pysugar/finance-nexus/internal/db"
	"github.com/pysugar/finance-nexus/internal/httpclient"
	"github.com/pysugar/finance-nexus/internal/proxy/handlers"
	"github.com/pysugar/finance-nexus/internal/proxy/middleware"
	"github.com/pysugar/finance-nexus/internal/version"
)

func main() {
	configPath := os.Getenv("FINNEXUS_CONFIG")
	if configPath == "" {
		configPath = "finnexus.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Shared network context + account repository
	netctx := account.NewNetworkContext()
	accounts := account.NewRepository(database, netctx)

	// Token plumbing: OAuth endpoint client, single-flight refresher
	oauthClient := oauth.NewClient()
	refresher := token.NewRefresher(accounts, oauthClient)

	// Per-account client registry, invalidated on account changes
	registry := httpclient.NewRegistry(accounts, refresher)
	accounts.OnChange(registry.EvictAll)

	// Sweep provisional rows left over from abandoned logins
	if err := accounts.RemoveStaleAccounts(); err != nil {
		log.Printf("⚠️ Stale account sweep failed: %v", err)
	}

	// Create router
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/health", handlers.HealthHandler())
	r.Get("/auth/callback", handlers.CallbackHandler(accounts, oauthClient, cfg))

	// Optional admin auth middleware
	optionalAdminAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminPassword == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, pass, ok := r.BasicAuth()
			if !ok || pass != cfg.AdminPassword {
				w.Header().Set("WWW-Authenticate", `Basic realm="Finance Nexus Admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Account management API (protected if admin_password is set)
	r.Route("/api", func(r chi.Router) {
		r.Use(optionalAdminAuth)
		r.Get("/accounts", handlers.AccountsAPIHandler(accounts))
		r.Post("/accounts", handlers.CreateAccountHandler(accounts, oauthClient, cfg))
		r.Post("/accounts/{id}/activate", handlers.ActivateAccountHandler(accounts))
		r.Post("/accounts/logout", handlers.LogoutHandler(accounts))
		r.Post("/accounts/stale/remove", handlers.RemoveStaleAccountsHandler(accounts))
		r.Post("/key/regenerate", handlers.RegenerateAPIKeyHandler(database))
	})

	// Mobile client access path (API key required)
	r.Route("/proxy", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(database))
		r.Handle("/*", handlers.ProxyHandler(accounts, netctx, registry))
	})

	log.Printf("🚀 finance-nexus %s listening on %s", version.Version, cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
