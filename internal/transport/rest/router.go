package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kit-checkout/internal"
	"github.com/frahmantamala/kit-checkout/internal/metrics"
	"github.com/frahmantamala/kit-checkout/internal/payment"
	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/internal/transport/middleware"
	"github.com/frahmantamala/kit-checkout/internal/transport/swagger"
	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
)

type Handlers struct {
	Kits    *product.Handler
	Payment *payment.Handler
	Webhook *payment.WebhookHandler
	Health  *HealthHandler
}

type Options struct {
	AllowedOrigins []string
	// RateLimiter guards payment creation; nil disables it.
	RateLimiter *middleware.RateLimiter
	// MetricsPath mounts the prometheus handler; empty disables it.
	MetricsPath string
	// TrustProxy takes the client address from forwarding headers.
	TrustProxy bool
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	if h.Health == nil {
		h.Health = NewHealthHandler(nil)
	}

	// Apply global middleware
	if opts.TrustProxy {
		router.Use(chimw.RealIP)
	}
	router.Use(middleware.CORSWithOrigins(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.Metrics)

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(internal.Response{
			Error: fmt.Sprintf("Método %s não permitido", r.Method),
			Code:  internal.ErrCodeMethodNotAllowed,
		})
	})

	router.Get(swagger.SpecPath, swagger.SpecHandler())
	router.Handle("/swagger/*", swagger.Handler())

	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.HealthCheckHandler)
		r.Get("/ping", h.Health.PingHandler)

		if h.Kits != nil {
			r.Get("/kits", h.Kits.GetKits)
		}

		if h.Payment != nil {
			r.Group(func(cr chi.Router) {
				if opts.RateLimiter != nil {
					cr.Use(opts.RateLimiter.Middleware)
				}
				cr.Post("/generate-pix", h.Payment.GeneratePix)
				cr.Post("/generate-pix-premium", h.Payment.GeneratePixPremium)
				cr.Post("/kits/{kit}/pix", h.Payment.GenerateKitPix)
			})
			r.Get("/check-payment/{id}", h.Payment.CheckPayment)
		}

		if h.Webhook != nil {
			r.Post("/webhook", h.Webhook.HandleNotification)
		}
	})

}
