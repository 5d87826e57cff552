package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/leaddesk/internal/errmsg"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

type getter interface {
	Get(ctx context.Context, userID string) (*Profile, error)
}

// Handler serves the signed-in user's profile.
type Handler struct {
	store  getter
	logger *logging.Logger
}

func NewHandler(store *SQLStore, logger *logging.Logger) *Handler {
	return newHandler(store, logger)
}

func newHandler(store getter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetMe responds 401 on ErrUnauthorized so the dashboard signs the user out.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := tenancy.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return
	}

	p, err := h.store.Get(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errmsg.From(err)})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
	default:
		h.logger.Error("profile lookup failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errmsg.From(err)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
