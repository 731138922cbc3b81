package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/crm-api/config"
	"github.com/jwalitptl/crm-api/internal/handler/health"
	"github.com/jwalitptl/crm-api/internal/repository/postgres"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/messaging/redis"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("worker requires the postgres driver")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: cfg.Log.TimeFormat,
		JSON:       cfg.Log.Format == "json",
	})
	log.Logger = *lg.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetricsWithRegistry(registry, "crm", "worker")

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		lg.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	repos := postgres.NewRepositories(db)

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), lg.Zerolog())
	if err != nil {
		lg.Fatal(err, "Failed to connect to redis")
	}
	defer broker.Close()

	processor := worker.NewOutboxProcessor(repos.Outbox, broker, cfg.Worker.Outbox.ToWorkerConfig(), lg, m)

	hk := worker.NewHousekeeper(repos.Outbox, repos.PasswordResets, repos.Sessions, worker.HousekeeperConfig{
		Schedule:        cfg.Worker.Housekeeping.Schedule,
		OutboxRetention: cfg.Worker.Housekeeping.OutboxRetention,
		Timeout:         cfg.Worker.Housekeeping.Timeout,
	}, lg, m)
	if err := hk.Start(); err != nil {
		lg.Fatal(err, "Failed to start housekeeping")
	}

	srv := setupHealthCheck(cfg.Worker.HealthPort, registry,
		health.Check{Name: "database", Ping: db.PingContext},
		health.Check{Name: "redis", Ping: broker.Ping},
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "Health server failed")
		}
	}()

	lg.Info("Worker started", "batch_size", cfg.Worker.Outbox.BatchSize, "schedule", cfg.Worker.Housekeeping.Schedule)
	processor.Start(ctx)

	lg.Info("Shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hk.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "Health server forced to shutdown")
	}
	lg.Info("Worker exited")
}

func setupHealthCheck(port int, registry *prometheus.Registry, checks ...health.Check) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(registry, checks...).RegisterRoutes(engine.Group(""))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
