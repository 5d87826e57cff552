// Package handlers holds the dashboard read endpoints that combine the lead store with the
// caller-tracking views and the sync loop.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leaddesk/internal/callers"
	"github.com/wolfman30/leaddesk/internal/errmsg"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/leadsync"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// LeadLister is the read side of leads.Service.
type LeadLister interface {
	List(ctx context.Context, companyID string) ([]leads.Lead, error)
}

// Refresher runs a foreground sync pass.
type Refresher interface {
	Refresh(ctx context.Context, companyID string, opts leadsync.RefreshOptions) (leadsync.RefreshResult, error)
}

// DashboardHandler serves list, tracking, grouping and refresh endpoints.
type DashboardHandler struct {
	leads    LeadLister
	syncer   Refresher
	pageSize int
	logger   *logging.Logger
	now      func() time.Time
}

func NewDashboardHandler(lister LeadLister, syncer Refresher, pageSize int, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &DashboardHandler{
		leads:    lister,
		syncer:   syncer,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// LeadsResponse is one page of dashboard cards.
type LeadsResponse struct {
	Leads      []callers.LeadView `json:"leads"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// ListLeads handles GET /leads?status=&source=&search=&page=&page_size=&sort=recent|priority.
func (h *DashboardHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	all, err := h.leads.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list leads", companyID, err)
		return
	}

	q := r.URL.Query()
	filter := leads.ListFilter{
		Status:   leads.LeadStatus(strings.TrimSpace(q.Get("status"))),
		Source:   leads.LeadSource(strings.TrimSpace(q.Get("source"))),
		Search:   q.Get("search"),
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), h.pageSize),
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown status"))
		return
	}

	now := h.now()
	matched := leads.Filter(all, filter)
	switch strings.ToLower(q.Get("sort")) {
	case "", "recent":
		callers.SortByRecent(matched)
	case "priority":
		callers.SortByPriority(matched, now)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("sort must be recent or priority"))
		return
	}

	page := leads.Paginate(matched, filter.Page, filter.PageSize)
	writeJSON(w, http.StatusOK, LeadsResponse{
		Leads:      callers.DescribeAll(all, page.Leads, now),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// TrackingResponse is the caller-tracking panel for one lead.
type TrackingResponse struct {
	LeadID     string                  `json:"lead_id"`
	Tracking   callers.CallerTracking  `json:"tracking"`
	TimeStatus callers.TimeBasedStatus `json:"time_status"`
	Style      callers.StyleToken      `json:"style"`
}

// LeadTracking handles GET /leads/{leadID}/tracking?label=Client|Lost|Archive.
func (h *DashboardHandler) LeadTracking(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	leadID := strings.TrimSpace(chi.URLParam(r, "leadID"))
	all, err := h.leads.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, "tracking", companyID, err)
		return
	}

	for _, l := range all {
		if l.ID != leadID {
			continue
		}
		view := callers.Describe(all, l, r.URL.Query().Get("label"), h.now())
		writeJSON(w, http.StatusOK, TrackingResponse{
			LeadID:     l.ID,
			Tracking:   view.Tracking,
			TimeStatus: view.TimeStatus,
			Style:      view.Style,
		})
		return
	}
	writeJSON(w, http.StatusNotFound, errorBody(leads.ErrLeadNotFound.Error()))
}

// GroupsResponse lists returning callers' grouped cards and the one-off callers.
type GroupsResponse struct {
	ReturningGroups [][]callers.LeadView `json:"returning_groups"`
	SingleCallers   []callers.LeadView   `json:"single_callers"`
}

// LeadGroups handles GET /leads/groups.
func (h *DashboardHandler) LeadGroups(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	all, err := h.leads.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, "groups", companyID, err)
		return
	}

	now := h.now()
	groups := callers.GroupReturningCallers(all)
	resp := GroupsResponse{
		ReturningGroups: make([][]callers.LeadView, 0, len(groups.ReturningGroups)),
		SingleCallers:   callers.DescribeAll(all, groups.SingleCallers, now),
	}
	for _, g := range groups.ReturningGroups {
		resp.ReturningGroups = append(resp.ReturningGroups, callers.DescribeAll(all, g, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /leads/refresh?force=true.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	if h.syncer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("sync is not configured"))
		return
	}
	userID, _ := tenancy.UserIDFromContext(r.Context())
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	res, err := h.syncer.Refresh(r.Context(), companyID, leadsync.RefreshOptions{Force: force, UserID: userID})
	if err != nil {
		h.fail(w, "refresh", companyID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DashboardHandler) company(w http.ResponseWriter, r *http.Request) (string, bool) {
	companyID, ok := tenancy.CompanyIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("missing company context"))
		return "", false
	}
	return companyID, true
}

func (h *DashboardHandler) fail(w http.ResponseWriter, op, companyID string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) {
		status = http.StatusRequestTimeout
	}
	h.logger.Error("dashboard request failed", "op", op, "company_id", companyID, "error", err)
	writeJSON(w, status, errorBody(errmsg.From(err)))
}

func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
