package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/intake"
	leadrepo "solar_portal_backend/internal/leads/repository"
	leadservice "solar_portal_backend/internal/leads/service"
	"solar_portal_backend/internal/scheduler"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/db"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if !cfg.UsesPostgres() {
		panic("scheduler requires STORE_DRIVER=postgres: retried submissions must reach the shared lead store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	// Lead events raised here stay in this process; the API's hub does not see them.
	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	leads := leadservice.New(leadrepo.New(pool), eventBus, val, log,
		leadservice.WithPhoneRegion(cfg.GetPhoneDefaultRegion()),
	)
	// Retry never falls back, so the worker needs no failure recorder.
	intakeService := intake.NewService(leads, eventBus, nil, val, log)

	worker, err := scheduler.NewWorker(cfg, intakeService, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	if err := worker.Run(ctx); err != nil {
		os.Exit(1)
	}
	eventBus.Wait()
	log.Info("scheduler stopped")
}
