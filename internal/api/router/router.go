// Package router wires the HTTP surface: public webhooks and health
// checks, and the JWT-protected admin API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shadowspark/support-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/shadowspark/support-ai-platform/internal/http/middleware"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	WebhookHandler       *handlers.WebhookHandler
	AdminEscalations     *handlers.AdminEscalationsHandler
	AdminAnalytics       *handlers.AdminAnalyticsHandler
	AdminConversations   *handlers.AdminConversationsHandler
	AdminAuthSecret      string
	MetricsHandler       http.Handler
	CORSAllowedOrigins   []string
	WebhookRatePerSecond float64
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: webhooks, health, metrics.
	r.Group(func(public chi.Router) {
		if cfg.WebhookHandler != nil {
			public.Get("/health", cfg.WebhookHandler.HealthCheck)

			rate := cfg.WebhookRatePerSecond
			if rate <= 0 {
				rate = 50
			}
			public.With(httpmiddleware.RateLimit(rate, int(rate)*2)).
				Post("/webhooks/whatsapp", cfg.WebhookHandler.HandleWhatsApp)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin API, JWT protected.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.AdminEscalations != nil {
				admin.Route("/escalations", func(r chi.Router) {
					r.Get("/", cfg.AdminEscalations.ListPending)
					r.Get("/stats", cfg.AdminEscalations.Stats)
					r.Post("/{escalationID}/assign", cfg.AdminEscalations.Assign)
					r.Post("/{escalationID}/progress", cfg.AdminEscalations.Progress)
					r.Post("/{escalationID}/resolve", cfg.AdminEscalations.Resolve)
				})
			}
			if cfg.AdminAnalytics != nil {
				admin.Get("/analytics/{clientID}", cfg.AdminAnalytics.ClientSummary)
			}
			if cfg.AdminConversations != nil {
				admin.Route("/conversations/{conversationID}", func(r chi.Router) {
					r.Get("/messages", cfg.AdminConversations.Messages)
					r.Get("/transcript", cfg.AdminConversations.LiveTranscript)
				})
			}
		})
	}

	return r
}
