package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/document-request/api"
	"github.com/frahmantamala/document-request/internal/auth"
	"github.com/frahmantamala/document-request/internal/catalog"
	"github.com/frahmantamala/document-request/internal/docrequest"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/transport/middleware"
	"github.com/frahmantamala/document-request/internal/transport/swagger"
)

type Handlers struct {
	Auth         *auth.Handler
	DocRequest   *docrequest.Handler
	Catalog      *catalog.Handler
	Notification *notification.Handler
}

type Options struct {
	HealthChecks map[string]Checker
	// Gatherer is nil when metrics are disabled.
	Gatherer    prometheus.Gatherer
	MetricsPath string
	Logger      *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options) {
	healthHandler := NewHealthHandler(opts.HealthChecks)

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.LoggingMiddleware(opts.Logger))
	router.Use(chiMiddleware.RealIP)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(api.Spec())
	})
	router.Handle("/swagger/*", swagger.Handler())

	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Gateway redirects land outside the API prefix
	if h.DocRequest != nil {
		router.Get("/payment-success", h.DocRequest.PaymentSuccess)
		router.Get("/payment-cancelled", h.DocRequest.PaymentCancelled)
		router.With(h.Auth.AuthMiddleware).Post("/document-request", h.DocRequest.SubmitDocumentRequest)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Catalog != nil {
			r.Get("/document-types", h.Catalog.GetDocumentTypes)
		}

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Notification != nil {
				pr.Get("/notifications", h.Notification.ListMine)
			}

			if h.DocRequest != nil {
				pr.Route("/document-requests", func(dr chi.Router) {
					dr.Get("/{id}", h.DocRequest.GetDocumentRequest)

					dr.Group(func(ar chi.Router) {
						ar.Use(h.Auth.RequireRole(auth.RoleAdmin))
						ar.Patch("/{id}/status", h.DocRequest.UpdateStatus)
					})
				})
			}
		})
	})
}
