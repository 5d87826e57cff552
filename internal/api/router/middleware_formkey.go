package router

import (
	"net/http"
	"strings"
)

const formKeyHeader = "X-Form-Key"
const formKeyQuery = "form_key"

// requireFormKey guards the public web-form intake with a shared key.
// When expected is empty, the middleware is a no-op.
func requireFormKey(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(formKeyHeader))
			if key == "" {
				key = strings.TrimSpace(r.URL.Query().Get(formKeyQuery))
			}
			if key == "" || key != expected {
				http.Error(w, "invalid form key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
