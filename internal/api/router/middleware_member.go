package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/leaddesk/internal/profiles"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// ProfileGetter loads the signed-in user's profile.
type ProfileGetter interface {
	Get(ctx context.Context, userID string) (*profiles.Profile, error)
}

// requireCompanyMember rejects users whose profile belongs to a different company than the one
// the request is scoped to. A nil getter disables the check.
func requireCompanyMember(members ProfileGetter, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if members == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := tenancy.UserIDFromContext(r.Context())
			companyID, ok := companyIDFromRequest(r)
			if !ok || userID == "" {
				http.Error(w, `{"error":"not signed in"}`, http.StatusUnauthorized)
				return
			}

			profile, err := members.Get(r.Context(), userID)
			switch {
			case errors.Is(err, profiles.ErrNotFound):
				http.Error(w, `{"error":"no profile for user"}`, http.StatusForbidden)
				return
			case errors.Is(err, profiles.ErrUnauthorized):
				http.Error(w, `{"error":"session expired"}`, http.StatusUnauthorized)
				return
			case err != nil:
				if logger != nil {
					logger.Error("failed to check company membership", "company_id", companyID, "error", err)
				}
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}

			if !strings.EqualFold(strings.TrimSpace(profile.CompanyID), companyID) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
