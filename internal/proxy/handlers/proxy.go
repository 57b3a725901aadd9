package handlers

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/finance-nexus/internal/account"
	"github.com/pysugar/finance-nexus/internal/httpclient"
	"github.com/pysugar/finance-nexus/internal/logging"
	"github.com/pysugar/finance-nexus/internal/util"
)

// hopHeaders are not forwarded either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyHandler forwards the request to the current account's finance server
// through that account's authenticated client. This is the path the mobile
// client uses for every remote call.
func ProxyHandler(repo *account.Repository, netctx *account.NetworkContext, registry *httpclient.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), logging.GenerateRequestID())

		userID, serverAddress, ok := netctx.Get()
		if !ok {
			// Cold start: resolve the current account, which also primes
			// the network context.
			acc, err := repo.CurrentAccount()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "no current account")
				return
			}
			userID, serverAddress = acc.ID, acc.ServerAddress
		}

		client := registry.GetClient(userID, serverAddress)

		target := strings.TrimSuffix(client.BaseURL, "/") + "/" + chi.URLParam(r, "*")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		copyHeaders(req.Header, r.Header)
		// The account client owns authentication.
		req.Header.Del("Authorization")

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("❌ [%s] Proxy request to %s failed: %v", logging.RequestID(ctx), target, err)
			writeError(w, http.StatusBadGateway, "upstream request failed")
			return
		}
		defer resp.Body.Close()

		log.Printf("📡 [%s] %s %s -> %d", logging.RequestID(ctx), r.Method, target, resp.StatusCode)

		copyHeaders(w.Header(), resp.Header)
		if resp.StatusCode >= http.StatusBadRequest {
			// Error bodies are small; buffer them so the failure is visible
			// in the daemon log as well as at the client.
			body, _ := io.ReadAll(resp.Body)
			log.Printf("⚠️ [%s] Upstream error %d: %s", logging.RequestID(ctx), resp.StatusCode, util.TruncateBytes(body))
			w.WriteHeader(resp.StatusCode)
			_, _ = w.Write(body)
			return
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopHeader(key string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}
