// Package app assembles services, handlers and the router for the API process.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/crm-api/config"
	assistantHandler "github.com/jwalitptl/crm-api/internal/handler/assistant"
	authHandler "github.com/jwalitptl/crm-api/internal/handler/auth"
	customerHandler "github.com/jwalitptl/crm-api/internal/handler/customer"
	dashboardHandler "github.com/jwalitptl/crm-api/internal/handler/dashboard"
	"github.com/jwalitptl/crm-api/internal/handler/health"
	interactionHandler "github.com/jwalitptl/crm-api/internal/handler/interaction"
	invitationHandler "github.com/jwalitptl/crm-api/internal/handler/invitation"
	opportunityHandler "github.com/jwalitptl/crm-api/internal/handler/opportunity"
	organizationHandler "github.com/jwalitptl/crm-api/internal/handler/organization"
	pipelineHandler "github.com/jwalitptl/crm-api/internal/handler/pipeline"
	sessionHandler "github.com/jwalitptl/crm-api/internal/handler/session"
	userHandler "github.com/jwalitptl/crm-api/internal/handler/user"
	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/router"
	"github.com/jwalitptl/crm-api/internal/service/assistant"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	authService "github.com/jwalitptl/crm-api/internal/service/auth"
	customerService "github.com/jwalitptl/crm-api/internal/service/customer"
	dashboardService "github.com/jwalitptl/crm-api/internal/service/dashboard"
	"github.com/jwalitptl/crm-api/internal/service/event"
	interactionService "github.com/jwalitptl/crm-api/internal/service/interaction"
	invitationService "github.com/jwalitptl/crm-api/internal/service/invitation"
	"github.com/jwalitptl/crm-api/internal/service/notification"
	opportunityService "github.com/jwalitptl/crm-api/internal/service/opportunity"
	organizationService "github.com/jwalitptl/crm-api/internal/service/organization"
	pipelineService "github.com/jwalitptl/crm-api/internal/service/pipeline"
	sessionService "github.com/jwalitptl/crm-api/internal/service/session"
	userService "github.com/jwalitptl/crm-api/internal/service/user"
	jwtauth "github.com/jwalitptl/crm-api/pkg/auth"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/security"
)

// Deps are the process level resources the API is built on
type Deps struct {
	Config   *config.Config
	Repos    repository.Repositories
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Auditor  *audit.Service
	Notifier notification.Service
	// Completer overrides the assistant provider chosen from config
	Completer assistant.Completer
	Hasher    security.PasswordHasher
	// Registry backs both HTTP metrics and /health/metrics; nil uses the defaults
	Registry *prometheus.Registry
	Checks   []health.Check
}

// NewCompleter picks the OpenAI provider when an API key is configured and
// the canned responder otherwise.
func NewCompleter(cfg config.AssistantConfig, log *logger.Logger) assistant.Completer {
	if cfg.APIKey == "" {
		log.Warn("Assistant API key not configured, using canned responses")
		return assistant.CannedCompleter{}
	}
	return assistant.NewOpenAICompleter(assistant.OpenAIConfig{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Timeout:       cfg.Timeout,
		BreakerFails:  cfg.BreakerFails,
		BreakerPeriod: cfg.BreakerPeriod,
	}, log)
}

// New wires every service and handler over d.Repos and returns a router with
// routes registered.
func New(d Deps) (*router.Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	cfg := d.Config
	repos := d.Repos

	if d.Hasher == nil {
		d.Hasher = security.NewBcryptHasher(0)
	}
	if d.Completer == nil {
		d.Completer = NewCompleter(cfg.Assistant, d.Logger)
	}

	jwt := jwtauth.NewJWTService(jwtauth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.SessionTTL,
	})
	events := event.NewEventService(repos.Outbox, d.Logger)

	sessions := sessionService.NewService(repos.Sessions, repos.Users, jwt, cfg.JWT.SessionTTL, d.Logger, d.Metrics)
	authSvc := authService.NewService(repos.Users, repos.PasswordResets, sessions, d.Hasher, d.Notifier, events, d.Auditor, d.Logger)
	userSvc := userService.NewService(repos.Users, sessions, d.Auditor)
	orgSvc := organizationService.NewService(repos.Organizations, d.Auditor)
	customerSvc := customerService.NewService(repos.Customers, events, d.Auditor, d.Logger, d.Metrics)
	interactionSvc := interactionService.NewService(repos.Interactions, d.Auditor)
	pipelineSvc := pipelineService.NewService(repos.Pipelines, d.Auditor)
	opportunitySvc := opportunityService.NewService(repos.Opportunities, repos.Pipelines, repos.Customers, repos.Users, events, d.Auditor, d.Logger, d.Metrics)
	invitationSvc := invitationService.NewService(repos.Invitations, repos.Users, repos.Organizations, sessions, d.Hasher, d.Notifier, events, d.Auditor, d.Logger)
	assistantSvc := assistant.NewService(repos.Conversations, repos.Organizations, d.Completer, cfg.Assistant.HistoryLimit, d.Logger, d.Metrics)
	dashboardSvc := dashboardService.NewService(repos.Dashboard)

	var gatherer prometheus.Gatherer
	var registerer prometheus.Registerer
	if d.Registry != nil {
		gatherer = d.Registry
		registerer = d.Registry
	}

	handlers := router.Handlers{
		Health:       health.NewHandler(gatherer, d.Checks...),
		Auth:         authHandler.NewHandler(authSvc),
		Session:      sessionHandler.NewHandler(sessions),
		User:         userHandler.NewHandler(userSvc),
		Organization: organizationHandler.NewHandler(orgSvc),
		Customer:     customerHandler.NewHandler(customerSvc),
		Interaction:  interactionHandler.NewHandler(interactionSvc),
		Pipeline:     pipelineHandler.NewHandler(pipelineSvc),
		Opportunity:  opportunityHandler.NewHandler(opportunitySvc),
		Invitation:   invitationHandler.NewHandler(invitationSvc),
		Assistant:    assistantHandler.NewHandler(assistantSvc),
		Dashboard:    dashboardHandler.NewHandler(dashboardSvc),
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(sessions), handlers, router.RouterConfig{
		Mode:             cfg.Server.Mode,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit: middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		},
		CORSConfig: middleware.CORSConfig{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     cfg.CORS.AllowedMethods,
			AllowHeaders:     cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		MetricsPrefix:  "crm_api",
		Registerer:     registerer,
	})
	r.Setup()
	return r, nil
}
