package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/crm-api/internal/handler/assistant"
	"github.com/jwalitptl/crm-api/internal/handler/auth"
	"github.com/jwalitptl/crm-api/internal/handler/customer"
	"github.com/jwalitptl/crm-api/internal/handler/dashboard"
	"github.com/jwalitptl/crm-api/internal/handler/health"
	"github.com/jwalitptl/crm-api/internal/handler/interaction"
	"github.com/jwalitptl/crm-api/internal/handler/invitation"
	"github.com/jwalitptl/crm-api/internal/handler/opportunity"
	"github.com/jwalitptl/crm-api/internal/handler/organization"
	"github.com/jwalitptl/crm-api/internal/handler/pipeline"
	"github.com/jwalitptl/crm-api/internal/handler/session"
	"github.com/jwalitptl/crm-api/internal/handler/user"
	"github.com/jwalitptl/crm-api/internal/middleware"
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Health       *health.Handler
	Auth         *auth.Handler
	Session      *session.Handler
	User         *user.Handler
	Organization *organization.Handler
	Customer     *customer.Handler
	Interaction  *interaction.Handler
	Pipeline     *pipeline.Handler
	Opportunity  *opportunity.Handler
	Invitation   *invitation.Handler
	Assistant    *assistant.Handler
	Dashboard    *dashboard.Handler
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	h           Handlers
	rateLimiter *middleware.RateLimiter
	metrics     *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        middleware.RateLimiterConfig
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
	MetricsPrefix    string
	// Registerer receives the HTTP metrics; nil means the default registry
	Registerer prometheus.Registerer
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "crm_api"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		h:       h,
		metrics: initRouterMetrics(config.Registerer, config.MetricsPrefix),
	}

	// Request id first so every later middleware can log it
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: config.MaxBodyBytes}),
	)

	if config.RateLimitEnabled {
		r.rateLimiter = middleware.NewRateLimiter(config.RateLimit)
		engine.Use(r.rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")
	api.Use(middleware.Version(middleware.DefaultVersionConfig()))

	r.h.Health.RegisterRoutes(api)

	// Public routes
	public := api.Group("")
	public.Use(middleware.Cache(middleware.DefaultCacheConfig()))
	r.setupPublicRoutes(public)

	// Protected routes
	protected := api.Group("")
	protected.Use(
		r.auth.Authenticate(),
		middleware.Cache(middleware.DefaultCacheConfig()),
	)
	admin := protected.Group("")
	admin.Use(r.auth.RequireAdmin())
	r.setupProtectedRoutes(protected, admin)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	r.h.Auth.RegisterRoutes(rg)
	r.h.Invitation.RegisterRoutes(rg)
}

func (r *Router) setupProtectedRoutes(rg, admin *gin.RouterGroup) {
	r.h.Auth.RegisterProtectedRoutes(rg)
	r.h.Session.RegisterRoutes(rg)
	r.h.User.RegisterRoutes(rg, admin)
	r.h.Organization.RegisterRoutes(rg, admin)
	r.h.Customer.RegisterRoutes(rg)
	r.h.Interaction.RegisterRoutes(rg)
	r.h.Pipeline.RegisterRoutes(rg)
	r.h.Opportunity.RegisterRoutes(rg)
	r.h.Invitation.RegisterAdminRoutes(admin)
	r.h.Assistant.RegisterRoutes(rg)
	r.h.Dashboard.RegisterRoutes(rg)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// RateLimiter returns the per-client limiter, or nil when rate limiting is off
func (r *Router) RateLimiter() *middleware.RateLimiter {
	return r.rateLimiter
}

func initRouterMetrics(reg prometheus.Registerer, prefix string) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
	reg.MustRegister(m.requestDuration, m.requestTotal, m.errorTotal)
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		status := fmt.Sprintf("%d", code)

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case code >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case code >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
