package router

import (
	"net/http"
	"strings"

	"github.com/wolfman30/leaddesk/internal/tenancy"
)

const companyHeader = "X-Company-Id"

// requireCompanyID scopes unauthenticated form posts to the company named in the header.
func requireCompanyID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID := strings.TrimSpace(r.Header.Get(companyHeader))
		if companyID == "" {
			http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
			return
		}
		ctx := tenancy.WithCompanyID(r.Context(), companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// companyIDFromRequest exposes the company id for local handlers.
func companyIDFromRequest(r *http.Request) (string, bool) {
	return tenancy.CompanyIDFromContext(r.Context())
}
