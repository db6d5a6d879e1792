package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wreckyard/checkout/internal/repository"
	"github.com/wreckyard/checkout/internal/service"
	"github.com/wreckyard/checkout/pkg/health"
	"github.com/wreckyard/checkout/pkg/middleware"
)

// NewRouter creates a chi router with all checkout service routes registered.
func NewRouter(
	cartService *service.CartService,
	checkoutService *service.CheckoutService,
	followups repository.FollowUpRepository,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("checkout"))
	r.Use(middleware.Tracing("checkout"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	cartHandler := NewCartHandler(cartService, logger)
	checkoutHandler := NewCheckoutHandler(checkoutService, logger)
	followUpHandler := NewFollowUpHandler(followups, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
		r.Delete("/items/{productId}", cartHandler.RemoveItem)
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Get("/", checkoutHandler.GetState)
		r.Put("/address", checkoutHandler.SetAddress)
		r.Put("/billing", checkoutHandler.SetBilling)
		r.Post("/rate", checkoutHandler.SelectRate)
		r.Post("/confirm", checkoutHandler.Confirm)
	})

	// Back-office surface, routed behind a separate gateway policy.
	r.Route("/api/v1/followups", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", followUpHandler.List)
		r.Post("/{id}/resolve", followUpHandler.Resolve)
	})

	return r
}
