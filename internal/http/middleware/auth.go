package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfman30/leaddesk/internal/tenancy"
)

const companyHeader = "X-Company-Id"

// Claims carried by dashboard session tokens. Subject is the user id.
type Claims struct {
	CompanyID string `json:"company_id,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Auth validates an HMAC-signed bearer token and stores the user and company in the request
// context. Browsers cannot set headers on websocket upgrades, so the token may also arrive as
// the access_token query parameter. Tokens without a company_id claim fall back to the
// X-Company-Id header.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				unauthorized(w, "auth disabled")
				return
			}
			tokenString := bearerToken(r)
			if tokenString == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			userID := strings.TrimSpace(claims.Subject)
			if userID == "" {
				unauthorized(w, "token has no subject")
				return
			}
			companyID := strings.TrimSpace(claims.CompanyID)
			if companyID == "" {
				companyID = strings.TrimSpace(r.Header.Get(companyHeader))
			}
			if companyID == "" {
				unauthorized(w, "missing company")
				return
			}

			ctx := tenancy.WithUserID(r.Context(), userID)
			ctx = tenancy.WithCompanyID(ctx, companyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Toucher is notified of every authenticated company request.
type Toucher interface {
	Touch(companyID string)
}

// TouchSession keeps the company's background sync alive while its dashboard is in use.
func TouchSession(t Toucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t != nil {
				if companyID, ok := tenancy.CompanyIDFromContext(r.Context()); ok {
					t.Touch(companyID)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
