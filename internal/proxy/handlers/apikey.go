package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pysugar/finance-nexus/internal/db"
	"gorm.io/gorm"
)

// RegenerateAPIKeyHandler rotates the access API key. The old key stops
// working immediately; the new key is returned once in the response.
func RegenerateAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := db.RegenerateAPIKey(database)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"apiKey": key})
	}
}
