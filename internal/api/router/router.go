package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/incident-response-ai/internal/http/middleware"
	"github.com/wolfman30/incident-response-ai/internal/incident"
	"github.com/wolfman30/incident-response-ai/internal/quota"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	IncidentHandler *incident.Handler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	CORSAllowedOrigins []string

	// RateLimiter throttles every route per client IP (optional).
	RateLimiter *httpmiddleware.RateLimiter
	// AnalysisQuota caps model-backed calls per client (optional).
	AnalysisQuota *quota.Limiter
	// RequestTimeout bounds each request; zero disables it.
	RequestTimeout time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	h := cfg.IncidentHandler

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", h.Health)
		public.Get("/providers", h.ListProviders)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Session endpoints
	r.Group(func(api chi.Router) {
		if cfg.RequestTimeout > 0 {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		api.Post("/providers/switch", h.SwitchProvider)
		api.Post("/clear_context", h.ClearContext)
		api.Post("/sessions/{sessionID}/email/send", h.SendEmail)

		api.Group(func(model chi.Router) {
			if cfg.AnalysisQuota != nil {
				model.Use(cfg.AnalysisQuota.Middleware)
			}
			model.Post("/analyze", h.Analyze)
			model.Post("/update_analysis", h.UpdateAnalysis)
			model.Post("/regenerate/{component}", h.Regenerate)
		})
	})

	// Admin endpoints
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
		admin.Post("/providers/keys", h.UpdateProviderKey)
		if cfg.AnalysisQuota != nil {
			admin.Get("/quota/{clientID}", cfg.AnalysisQuota.Usage)
			admin.Delete("/quota/{clientID}", cfg.AnalysisQuota.ResetUsage)
		}
	})

	return r
}
