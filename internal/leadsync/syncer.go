// Package leadsync keeps each active company's lead list in step with the call provider.
package leadsync

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/observability/metrics"
	"github.com/wolfman30/leaddesk/internal/reconcile"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// Runner executes one reconciliation pass.
type Runner interface {
	Run(ctx context.Context, companyID string, mode reconcile.Mode) (reconcile.Result, error)
}

// RefreshOptions tune a foreground refresh.
type RefreshOptions struct {
	// Force skips the freshness window.
	Force bool
	// UserID receives new-lead emails.
	UserID string
}

// RefreshResult is what a foreground refresh hands back to the dashboard.
type RefreshResult struct {
	Leads    []leads.Lead `json:"leads"`
	NewLeads []leads.Lead `json:"new_leads"`
	// Skipped is set when the last fetch was recent enough and the snapshot was served as is.
	Skipped bool `json:"skipped"`
	// InProgress is set when another pass for the company was already running.
	InProgress bool      `json:"in_progress"`
	LastFetch  time.Time `json:"last_fetch,omitempty"`
	// Warning carries a provider failure that did not fail the refresh.
	Warning string `json:"warning,omitempty"`
}

// Config configures a Syncer.
type Config struct {
	Runner      Runner
	Cache       SyncCache
	Snapshot    *leads.Snapshot
	MinInterval time.Duration
	Metrics     *metrics.SyncMetrics
	Logger      *logging.Logger
	Now         func() time.Time
}

// Syncer runs background and foreground passes with at most one pass per company at a time.
type Syncer struct {
	runner      Runner
	cache       SyncCache
	snapshot    *leads.Snapshot
	minInterval time.Duration
	metrics     *metrics.SyncMetrics
	logger      *logging.Logger
	now         func() time.Time

	mu        sync.Mutex
	inFlight  map[string]struct{}
	onRefresh func(companyID string)
}

// NewSyncer validates cfg and fills defaults.
func NewSyncer(cfg Config) (*Syncer, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("leadsync: runner is required")
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	snapshot := cfg.Snapshot
	if snapshot == nil {
		snapshot = leads.NewSnapshot()
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Syncer{
		runner:      cfg.Runner,
		cache:       cache,
		snapshot:    snapshot,
		minInterval: minInterval,
		metrics:     cfg.Metrics,
		logger:      logger,
		now:         now,
		inFlight:    make(map[string]struct{}),
	}, nil
}

// OnRefresh registers a hook called after every completed foreground pass.
func (s *Syncer) OnRefresh(fn func(companyID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

// Background runs a silent pass. Failures are logged and never returned.
func (s *Syncer) Background(ctx context.Context, companyID string) {
	if !s.acquire(companyID) {
		s.metrics.ObserveSkip("in_flight")
		s.logger.Debug("sync pass already running", "company_id", companyID)
		return
	}
	defer s.release(companyID)

	res, err := s.pass(ctx, companyID, reconcile.ModeBackground)
	if err != nil {
		s.logger.Warn("background sync failed", "company_id", companyID, "error", err)
		return
	}
	if len(res.NewLeads) > 0 {
		s.logger.Info("background sync found new leads", "company_id", companyID, "count", len(res.NewLeads))
	}
}

// Refresh runs a user-initiated pass. Unless forced, it serves the snapshot when the last
// successful fetch is younger than the minimum interval.
func (s *Syncer) Refresh(ctx context.Context, companyID string, opts RefreshOptions) (RefreshResult, error) {
	if strings.TrimSpace(companyID) == "" {
		return RefreshResult{}, fmt.Errorf("leadsync: company id is required")
	}

	last, hasLast, err := s.cache.Get(ctx, companyID)
	if err != nil {
		s.logger.Warn("sync cache read failed", "company_id", companyID, "error", err)
	}
	if !opts.Force && hasLast && s.now().Sub(last) < s.minInterval {
		if list, ok := s.snapshot.Get(companyID); ok {
			s.metrics.ObserveSkip("fresh")
			return RefreshResult{Leads: list, NewLeads: []leads.Lead{}, Skipped: true, LastFetch: last}, nil
		}
	}

	if !s.acquire(companyID) {
		s.metrics.ObserveSkip("in_flight")
		list, _ := s.snapshot.Get(companyID)
		if list == nil {
			list = []leads.Lead{}
		}
		return RefreshResult{Leads: list, NewLeads: []leads.Lead{}, InProgress: true, LastFetch: last}, nil
	}
	defer s.release(companyID)

	if opts.UserID != "" {
		ctx = tenancy.WithUserID(ctx, opts.UserID)
	}
	res, err := s.pass(ctx, companyID, reconcile.ModeForeground)
	s.notifyRefresh(companyID)
	if err != nil {
		return RefreshResult{}, err
	}

	out := RefreshResult{Leads: res.Leads, NewLeads: res.NewLeads, LastFetch: last}
	if out.Leads == nil {
		out.Leads = []leads.Lead{}
	}
	if out.NewLeads == nil {
		out.NewLeads = []leads.Lead{}
	}
	if res.FetchErr != nil {
		out.Warning = "Could not reach the call provider; showing saved leads."
	} else {
		out.LastFetch = s.now()
	}
	return out, nil
}

// InFlight reports whether a pass for the company is running.
func (s *Syncer) InFlight(companyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[companyID]
	return ok
}

func (s *Syncer) pass(ctx context.Context, companyID string, mode reconcile.Mode) (res reconcile.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sync pass panicked", "company_id", companyID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("leadsync: pass panicked: %v", r)
		}
	}()

	res, err = s.runner.Run(ctx, companyID, mode)
	if err == nil || res.Leads != nil {
		list := res.Leads
		if list == nil {
			list = []leads.Lead{}
		}
		s.snapshot.Replace(companyID, list)
	}
	if err != nil {
		return res, err
	}
	if res.FetchErr == nil {
		if cacheErr := s.cache.Set(ctx, companyID, s.now()); cacheErr != nil {
			s.logger.Warn("sync cache write failed", "company_id", companyID, "error", cacheErr)
		}
	}
	return res, nil
}

func (s *Syncer) acquire(companyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[companyID]; busy {
		return false
	}
	s.inFlight[companyID] = struct{}{}
	return true
}

func (s *Syncer) release(companyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, companyID)
}

func (s *Syncer) notifyRefresh(companyID string) {
	s.mu.Lock()
	fn := s.onRefresh
	s.mu.Unlock()
	if fn != nil {
		fn(companyID)
	}
}
