package main

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmiddleware "github.com/wolfman30/leaddesk/internal/http/middleware"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/observability/metrics"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// setupMetrics builds a private registry so tests can construct it repeatedly.
func setupMetrics() (http.Handler, *metrics.SyncMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	syncMetrics := metrics.NewSyncMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), syncMetrics
}

// connectPostgresPool returns nil when no database is configured or reachable.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		logger.Warn("DATABASE_URL not set; leads are kept in memory")
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// openProfilesDB opens the database/sql handle the profile store reads through.
func openProfilesDB(url string, logger *logging.Logger) *sql.DB {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		logger.Error("failed to open profiles db", "error", err)
		return nil
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db
}

func buildLeadRepository(pool *pgxpool.Pool) leads.Repository {
	if pool == nil {
		return leads.NewInMemoryRepository()
	}
	return leads.NewPostgresRepository(pool)
}

// evictRateLimits drops idle limiter buckets until ctx ends.
func evictRateLimits(ctx context.Context, rl *httpmiddleware.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Evict(now.Add(-every))
		}
	}
}
