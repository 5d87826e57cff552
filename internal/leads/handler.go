package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leaddesk/internal/errmsg"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// Handler handles HTTP requests for leads
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// CreateLead handles POST /leads requests from the dashboard.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, "")
}

// CreateWebLead handles POST /leads/web requests
func (h *Handler) CreateWebLead(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, SourceWebForm)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, forcedSource LeadSource) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	companyID, ok := tenancy.CompanyIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing company context", http.StatusBadRequest)
		return
	}
	req.CompanyID = companyID
	if forcedSource != "" {
		req.Source = forcedSource
	}

	lead, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// GetLead handles GET /leads/{leadID}.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	lead, err := h.svc.Get(r.Context(), companyID, leadID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// DeleteLead handles DELETE /leads/{leadID}.
func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), companyID, leadID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /leads/{leadID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, err := ParseLeadStatus(req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	lead, err := h.svc.UpdateStatus(r.Context(), companyID, leadID, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// MarkContacted handles POST /leads/{leadID}/contacted.
func (h *Handler) MarkContacted(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	lead, err := h.svc.MarkContacted(r.Context(), companyID, leadID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type addNoteRequest struct {
	Text string `json:"text"`
}

// AddNote handles POST /leads/{leadID}/notes.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	author, _ := tenancy.UserIDFromContext(r.Context())
	lead, err := h.svc.AddNote(r.Context(), companyID, leadID, req.Text, author)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// RecordCall handles POST /leads/{leadID}/calls.
func (h *Handler) RecordCall(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	var rec CallRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	lead, err := h.svc.RecordCall(r.Context(), companyID, leadID, rec)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// RegenerateInsights handles POST /leads/{leadID}/insights.
func (h *Handler) RegenerateInsights(w http.ResponseWriter, r *http.Request) {
	companyID, leadID, ok := scope(w, r)
	if !ok {
		return
	}
	lead, err := h.svc.RegenerateInsights(r.Context(), companyID, leadID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func scope(w http.ResponseWriter, r *http.Request) (companyID, leadID string, ok bool) {
	companyID, ok = tenancy.CompanyIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing company context", http.StatusBadRequest)
		return "", "", false
	}
	leadID = strings.TrimSpace(chi.URLParam(r, "leadID"))
	if leadID == "" {
		http.Error(w, "missing lead id", http.StatusBadRequest)
		return "", "", false
	}
	return companyID, leadID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrLeadNotFound):
		status = http.StatusNotFound
	case IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, ErrInsightsUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("lead request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": errmsg.From(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
