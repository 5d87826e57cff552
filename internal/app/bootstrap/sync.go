package bootstrap

import (
	"context"
	"fmt"

	appconfig "github.com/wolfman30/leaddesk/internal/config"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/leadsync"
	"github.com/wolfman30/leaddesk/internal/observability/metrics"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// SyncLoop bundles the syncer with the supervisor that schedules its background passes.
type SyncLoop struct {
	Syncer     *leadsync.Syncer
	Supervisor *leadsync.Supervisor
}

// BuildSyncLoop wires the syncer and its per-company supervisor. A foreground refresh resets
// the company's background timer, and companies listed in SYNC_COMPANY_IDS start syncing
// before any dashboard connects.
func BuildSyncLoop(ctx context.Context, cfg *appconfig.Config, runner leadsync.Runner, snapshot *leads.Snapshot, cache leadsync.SyncCache, m *metrics.SyncMetrics, logger *logging.Logger) (*SyncLoop, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	syncer, err := leadsync.NewSyncer(leadsync.Config{
		Runner:      runner,
		Cache:       cache,
		Snapshot:    snapshot,
		MinInterval: cfg.SyncMinInterval,
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: syncer: %w", err)
	}

	supervisor := leadsync.NewSupervisor(ctx, syncer, leadsync.SupervisorConfig{
		Interval:    cfg.SyncInterval,
		IdleTimeout: cfg.SyncSessionIdle,
		Logger:      logger,
	})
	syncer.OnRefresh(supervisor.Reset)

	for _, companyID := range cfg.SyncCompanyIDs {
		supervisor.Touch(companyID)
	}
	logger.Info("sync loop configured",
		"interval", cfg.SyncInterval.String(),
		"idle_timeout", cfg.SyncSessionIdle.String(),
		"preloaded_companies", len(cfg.SyncCompanyIDs),
	)
	return &SyncLoop{Syncer: syncer, Supervisor: supervisor}, nil
}
