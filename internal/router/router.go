package router

import (
	"net/http"

	"promo-orders/internal/handler"
	"promo-orders/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Orders *handler.OrderHandler
	Promos *handler.PromoHandler
	Usage  *handler.UsageHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, apiKey string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.Create)
			r.Get("/", h.Orders.GetAll)
			r.Post("/direct", h.Orders.CreateDirect)
			r.Get("/jobs/{jobId}", h.Orders.GetJobStatus)
			r.Get("/user/{userId}", h.Orders.GetUserOrders)
			r.Get("/user/{userId}/stats", h.Orders.GetUserStats)
			r.Get("/{id}", h.Orders.GetByID)
		})

		r.Route("/promo-codes", func(r chi.Router) {
			r.Post("/", h.Promos.Create)
			r.Get("/", h.Promos.List)
			r.Post("/validate", h.Promos.Validate)
			r.Post("/apply", h.Promos.Apply)
			r.Get("/stats", h.Promos.Stats)
		})

		r.Route("/promo-code-usage", func(r chi.Router) {
			r.Get("/promo/{code}", h.Usage.ByCode)
			r.Get("/user/{userId}", h.Usage.ByUser)
		})
	})

	return r
}
