package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/unieats/unieats-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса UniEats.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/cafeterias", h.GetCafeterias)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Post("/orders/{orderID}/status", h.UpdateOrderStatus)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/cafeterias", h.CreateCafeteria)
				r.Get("/revenue/summary", h.GetRevenueSummary)

				r.Post("/audit/calculations", h.AuditCalculations)
				r.Post("/audit/fix", h.FixCalculations)
				r.Post("/audit/consistency", h.ValidateConsistency)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
