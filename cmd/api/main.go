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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"solar_portal_backend/internal/adapters"
	"solar_portal_backend/internal/chat"
	chatrepo "solar_portal_backend/internal/chat/repository"
	"solar_portal_backend/internal/email"
	"solar_portal_backend/internal/events"
	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/internal/http/router"
	"solar_portal_backend/internal/intake"
	"solar_portal_backend/internal/leads"
	leadrepo "solar_portal_backend/internal/leads/repository"
	"solar_portal_backend/internal/notification"
	"solar_portal_backend/internal/presence"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/internal/realtime/stream"
	"solar_portal_backend/internal/scheduler"
	"solar_portal_backend/migrations"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/db"
	"solar_portal_backend/platform/httpkit"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

// lastSeenTTL bounds how long an idle subscriber's last-seen record is kept.
const lastSeenTTL = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.GetStoreDriver())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var (
		pool     *pgxpool.Pool
		leadRepo leadrepo.LeadRepository
		chatRepo chatrepo.ChatRepository
	)
	if cfg.UsesPostgres() {
		pool = connectPostgres(ctx, cfg, log)
		defer pool.Close()
		leadRepo = leadrepo.New(pool)
		chatRepo = chatrepo.New(pool)
	} else {
		log.Warn("STORE_DRIVER=memory; leads and chat are not persisted")
		leadRepo = leadrepo.NewMemory()
		chatRepo = chatrepo.NewMemory()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := realtime.NewMetrics(metricsRegistry)

	// ========================================================================
	// Real-time Layer
	// ========================================================================

	registry := realtime.NewRegistry(log, realtime.WithRegistryMetrics(metrics))
	hub := realtime.NewHub(registry, log, realtime.WithHubMetrics(metrics))

	trackerOpts := []presence.Option{
		presence.WithStaleAfter(cfg.GetPresenceStaleAfter()),
		presence.WithSweepSchedule(cfg.GetPresenceSweepSchedule()),
	}
	lastSeen := initLastSeenStore(ctx, cfg, log)
	if lastSeen != nil {
		defer func() { _ = lastSeen.Close() }()
		trackerOpts = append(trackerOpts, presence.WithLastSeenStore(lastSeen))
	}
	tracker := presence.NewTracker(hub, log, trackerOpts...)

	// ========================================================================
	// Domain Modules
	// ========================================================================

	leadsModule := leads.NewModule(leadRepo, eventBus, val, cfg, log)

	leadTimeline := adapters.NewLeadTimelineWriter(leadsModule.Service())
	chatModule := chat.NewModule(chatRepo, hub, eventBus, leadTimeline, val, log)

	presenceModule := presence.NewModule(tracker)
	streamModule := stream.NewModule(registry, tracker, cfg, log)

	retryQueue, closeRetryQueue := initIntakeRetryQueue(cfg, log)
	if closeRetryQueue != nil {
		defer closeRetryQueue()
	}
	intakeService := intake.NewService(leadsModule.Service(), eventBus, retryQueue, val, log)
	intakeModule := intake.NewModule(intakeService, httpkit.NewPerMinuteLimiter(cfg.GetIntakeRatePerMinute(), log))

	notificationModule := notification.New(hub, registry, email.NewSender(cfg), cfg, log)
	if pool != nil && cfg.IsSMTPEnabled() {
		notificationModule.SetDirectory(notification.NewPostgresDirectory(pool))
	}
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Metrics:  metricsRegistry,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			chatModule,
			presenceModule,
			streamModule,
			intakeModule,
		},
	}
	if pool != nil {
		app.Health = pool
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := tracker.Start(); err != nil {
		log.Error("failed to schedule presence sweep", "error", err, "schedule", cfg.GetPresenceSweepSchedule())
		panic("failed to schedule presence sweep: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		tracker.Stop()
		// streams only end when their sinks close, so purge before Shutdown waits on them
		registry.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		eventBus.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func connectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) *pgxpool.Pool {
	if err := db.Retry(ctx, log, "database migrations", db.StartupBackoff, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	pool, err := db.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")
	return pool
}

func initLastSeenStore(ctx context.Context, cfg config.SchedulerConfig, log *logger.Logger) *presence.RedisLastSeenStore {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; presence last-seen is kept in memory only")
		return nil
	}

	store, err := presence.NewRedisLastSeenStoreFromURL(cfg.GetRedisURL(), lastSeenTTL)
	if err != nil {
		log.Error("failed to initialize presence last-seen store", "error", err)
		return nil
	}
	if err := store.Ping(ctx); err != nil {
		log.Warn("presence last-seen store unreachable, continuing without it", "error", err)
		_ = store.Close()
		return nil
	}
	return store
}

func initIntakeRetryQueue(cfg config.SchedulerConfig, log *logger.Logger) (intake.FailureRecorder, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; failed contact submissions are only logged")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize intake retry queue", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
