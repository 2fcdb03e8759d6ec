package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/db"
)

// AdminAuth protects the admin API. A request passes with the API key stored
// in the configs table (Bearer token or x-api-key header), or with HTTP basic
// auth matching adminPassword when one is configured.
func AdminAuth(database *gorm.DB, adminPassword string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedKey := db.GetAPIKey(database)
			if expectedKey == "" && adminPassword == "" {
				// Nothing configured yet
				next.ServeHTTP(w, r)
				return
			}

			if expectedKey != "" {
				if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && equal(token, expectedKey) {
					next.ServeHTTP(w, r)
					return
				}
				if equal(r.Header.Get("x-api-key"), expectedKey) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if adminPassword != "" {
				if _, pass, ok := r.BasicAuth(); ok && equal(pass, adminPassword) {
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="hipconnect admin"`)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "authentication_error"}}`))
		})
	}
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
