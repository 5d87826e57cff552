package leadsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/leaddesk/pkg/logging"
)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Interval between background passes for an active company.
	Interval time.Duration
	// IdleTimeout stops a company's task once no dashboard request has touched it for this long.
	IdleTimeout time.Duration
	// ReapInterval is how often idle sessions are checked.
	ReapInterval time.Duration

	// TaskConfig overrides the periodic config for each started task. Used by tests.
	TaskConfig func(companyID string) PeriodicConfig
	// ReapTick replaces the reaper ticker. Used by tests.
	ReapTick <-chan time.Time

	Logger *logging.Logger
	Now    func() time.Time
}

type session struct {
	handle   *CancelHandle
	lastSeen time.Time
}

// Supervisor owns one periodic background task per active company.
type Supervisor struct {
	syncer *Syncer
	cfg    SupervisorConfig
	logger *logging.Logger
	now    func() time.Time

	base context.Context

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSupervisor creates a supervisor whose tasks live until ctx ends or StopAll is called.
func NewSupervisor(ctx context.Context, syncer *Syncer, cfg SupervisorConfig) *Supervisor {
	if syncer == nil {
		panic("leadsync: syncer required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Supervisor{
		syncer:   syncer,
		cfg:      cfg,
		logger:   logger,
		now:      now,
		base:     ctx,
		sessions: make(map[string]*session),
	}
}

// Touch marks a company as active and starts its background task if none is running.
func (s *Supervisor) Touch(companyID string) {
	if companyID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[companyID]; ok {
		select {
		case <-sess.handle.Done():
		default:
			sess.lastSeen = s.now()
			return
		}
	}

	taskCfg := PeriodicConfig{Interval: s.cfg.Interval}
	if s.cfg.TaskConfig != nil {
		taskCfg = s.cfg.TaskConfig(companyID)
	}
	handle := StartPeriodicTask(s.base, taskCfg, func(ctx context.Context) {
		s.syncer.Background(ctx, companyID)
	})
	s.sessions[companyID] = &session{handle: handle, lastSeen: s.now()}
	s.logger.Info("lead sync started", "company_id", companyID, "interval", taskCfg.Interval.String())
}

// Reset pushes the company's next background pass a full interval out. Called after a
// foreground refresh so the two do not run back to back.
func (s *Supervisor) Reset(companyID string) {
	s.mu.Lock()
	sess, ok := s.sessions[companyID]
	s.mu.Unlock()
	if ok {
		sess.handle.Reset()
	}
}

// Stop cancels one company's task.
func (s *Supervisor) Stop(companyID string) {
	s.mu.Lock()
	sess, ok := s.sessions[companyID]
	delete(s.sessions, companyID)
	s.mu.Unlock()
	if ok {
		sess.handle.Cancel()
		s.logger.Info("lead sync stopped", "company_id", companyID)
	}
}

// ReapIdle stops every task whose company has not been touched within the idle timeout.
// It returns the stopped company ids.
func (s *Supervisor) ReapIdle(now time.Time) []string {
	var stale []*session
	var ids []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) >= s.cfg.IdleTimeout {
			stale = append(stale, sess)
			ids = append(ids, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for i, sess := range stale {
		sess.handle.Cancel()
		s.logger.Info("lead sync idle, stopped", "company_id", ids[i])
	}
	sort.Strings(ids)
	return ids
}

// Run reaps idle sessions until ctx ends, then stops every task.
func (s *Supervisor) Run(ctx context.Context) {
	tick := s.cfg.ReapTick
	if tick == nil {
		ticker := time.NewTicker(s.cfg.ReapInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			s.StopAll()
			return
		case <-tick:
			s.ReapIdle(s.now())
		}
	}
}

// StopAll cancels every running task and waits for in-flight passes to return.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	handles := make([]*CancelHandle, 0, len(s.sessions))
	for id, sess := range s.sessions {
		handles = append(handles, sess.handle)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// Active lists the companies with a running task.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
