package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/wolfman30/leaddesk/cmd/mainconfig"
	"github.com/wolfman30/leaddesk/internal/api/router"
	"github.com/wolfman30/leaddesk/internal/app/bootstrap"
	appconfig "github.com/wolfman30/leaddesk/internal/config"
	"github.com/wolfman30/leaddesk/internal/events"
	"github.com/wolfman30/leaddesk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/leaddesk/internal/http/middleware"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/notify"
	"github.com/wolfman30/leaddesk/internal/profiles"
	"github.com/wolfman30/leaddesk/internal/realtime"
	"github.com/wolfman30/leaddesk/internal/reconcile"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leaddesk API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	repo := buildLeadRepository(pool)
	snapshot := leads.NewSnapshot()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
		} else {
			awsCfg = &loaded
		}
	}

	provider, err := bootstrap.BuildProviderClient(cfg, logger)
	if err != nil {
		logger.Error("failed to configure call provider", "error", err)
		os.Exit(1)
	}
	var lister reconcile.ConversationLister

	// Lead mutations
	leadService := leads.NewService(repo, snapshot, logger).
		WithInsightGenerator(bootstrap.BuildInsightGenerator(cfg, awsCfg, logger))
	if provider != nil {
		lister = provider
		leadService.WithConversationDeleter(provider)
	}
	if archiver := bootstrap.BuildArchiver(cfg, awsCfg, logger); archiver != nil {
		leadService.WithArchiver(archiver)
	}

	// Profiles
	var profileStore *profiles.SQLStore
	if db := openProfilesDB(cfg.DatabaseURL, logger); db != nil {
		defer func() { _ = db.Close() }()
		profileStore = profiles.NewSQLStore(db, profiles.Options{
			RetryDelay:  cfg.ProfileRetryDelay,
			MaxAttempts: cfg.ProfileMaxAttempts,
			Logger:      logger,
		})
	}

	// Reconciliation and its side effects
	metricsHandler, syncMetrics := setupMetrics()
	hub := realtime.NewHub(logger)
	reconciler := reconcile.NewService(repo, lister, logger).
		WithPublisher(hub).
		WithMetrics(syncMetrics)
	if profileStore != nil {
		notifier := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), cfg.DefaultPhoneRegion, logger)
		reconciler.WithEmail(profileStore, notifier)
	}
	if pool != nil {
		outbox := events.NewOutboxStore(pool)
		reconciler.WithEvents(events.NewRecorder(outbox))
		go events.NewDeliverer(outbox, events.NewLogHandler(logger), logger).Start(ctx)
	}

	// Sync loop
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	loop, err := bootstrap.BuildSyncLoop(ctx, cfg, reconciler, snapshot, bootstrap.BuildSyncCache(redisClient, logger), syncMetrics, logger)
	if err != nil {
		logger.Error("failed to configure sync loop", "error", err)
		os.Exit(1)
	}
	go loop.Supervisor.Run(ctx)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	go evictRateLimits(ctx, limiter, 10*time.Minute)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(leadService, logger),
		Dashboard:          handlers.NewDashboardHandler(leadService, loop.Syncer, cfg.LeadsPageSize, logger),
		Realtime:           http.HandlerFunc(hub.ServeWS),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthSecret:         cfg.AuthJWTSecret,
		WebFormKey:         cfg.WebFormKey,
		Sessions:           loop.Supervisor,
		RateLimiter:        limiter,
	}
	if profileStore != nil {
		routerCfg.ProfilesHandler = profiles.NewHandler(profileStore, logger)
		routerCfg.Members = profileStore
	}
	if cfg.AuthJWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; dashboard routes will reject every request")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	loop.Supervisor.StopAll()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
