package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/crm-api/config"
	"github.com/jwalitptl/crm-api/internal/app"
	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/handler/health"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/repository/postgres"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/service/notification"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/messaging"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/worker"
)

const shutdownTimeout = 15 * time.Second

func newLogger(cfg config.LogConfig) *logger.Logger {
	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: cfg.TimeFormat,
		JSON:       cfg.Format == "json",
	})
	// middleware logs through the global zerolog logger
	log.Logger = *lg.Zerolog()
	return lg
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetricsWithRegistry(registry, "crm", "api")

	auditor, err := audit.NewService(cfg.Log.AuditFile)
	if err != nil {
		lg.Fatal(err, "Failed to initialize audit log")
	}
	defer auditor.Sync()

	sender, err := email.NewSender(cfg.Email, lg)
	if err != nil {
		lg.Fatal(err, "Failed to initialize email sender")
	}
	notifier := notification.NewService(email.NewService(sender, cfg.Email.FrontendURL), lg, cfg.Email.SendTimeout)
	defer notifier.Wait()

	var (
		repos  repository.Repositories
		checks []health.Check
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			lg.Fatal(err, "Failed to connect to database")
		}
		defer db.Close()
		repos = postgres.NewRepositories(db)
		checks = append(checks, health.Check{Name: "database", Ping: db.PingContext})
	case "memory":
		lg.Warn("Using the in-memory store, data is lost on restart")
		repos = memory.NewStore().Repositories()
		startEmbeddedWorker(ctx, cfg, repos, lg, m)
	}

	r, err := app.New(app.Deps{
		Config:   cfg,
		Repos:    repos,
		Logger:   lg,
		Metrics:  m,
		Auditor:  auditor,
		Notifier: notifier,
		Registry: registry,
		Checks:   checks,
	})
	if err != nil {
		lg.Fatal(err, "Failed to build router")
	}
	if rl := r.RateLimiter(); rl != nil {
		go rl.Run(ctx, time.Minute)
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		lg.Info("Starting API server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal(err, "Failed to start server")
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "Server forced to shutdown")
	}
	lg.Info("Server exited")
}

// startEmbeddedWorker runs the outbox processor and housekeeping in process.
// The memory store cannot be shared with cmd/worker, so events are published
// to an in-memory broker.
func startEmbeddedWorker(ctx context.Context, cfg *config.Config, repos repository.Repositories, lg *logger.Logger, m *metrics.Metrics) {
	broker := messaging.NewMemoryBroker()
	processor := worker.NewOutboxProcessor(repos.Outbox, broker, cfg.Worker.Outbox.ToWorkerConfig(), lg, m)
	go processor.Start(ctx)

	hk := worker.NewHousekeeper(repos.Outbox, repos.PasswordResets, repos.Sessions, worker.HousekeeperConfig{
		Schedule:        cfg.Worker.Housekeeping.Schedule,
		OutboxRetention: cfg.Worker.Housekeeping.OutboxRetention,
		Timeout:         cfg.Worker.Housekeeping.Timeout,
	}, lg, m)
	if err := hk.Start(); err != nil {
		lg.Fatal(err, "Failed to start housekeeping")
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hk.Stop(stopCtx)
		_ = broker.Close()
	}()
}
