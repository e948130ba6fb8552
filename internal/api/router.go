package api

import (
	"net/http"

	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/middleware"
	"gamekeys-be/internal/order"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Orders    order.Service
	Checkout  checkoutService
	Coupons   couponService
	Stock     stockService
	Fulfiller fulfiller
	Webhook   http.Handler

	Auth    *middleware.Auth
	Limiter *middleware.Limiter

	Health      pinger
	StorageName string
	Gatherer    prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	h := &Handler{
		orders:    d.Orders,
		checkout:  d.Checkout,
		coupons:   d.Coupons,
		stock:     d.Stock,
		fulfiller: d.Fulfiller,
		health:    d.Health,
		storage:   d.StorageName,
	}

	r := chi.NewRouter()
	r.Use(
		logger.RequestIDMiddleware,
		middleware.Recoverer,
		d.Auth.Middleware,
		middleware.AccessLog,
	)
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware)
	}

	r.Get("/health", h.Health)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/webhooks/payment", d.Webhook.ServeHTTP)
	r.Post("/coupons/validate", h.ValidateCoupon)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/orders/{id}/payments", h.InitiatePayment)
		r.Get("/orders/{id}/codes", h.GetOrderCodes)
		r.Get("/orders/{id}/tracking", h.GetOrderTracking)
		r.Post("/payments/verify", h.VerifyPayment)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
		r.Post("/orders/{id}/fulfill", h.FulfillOrder)
		r.Post("/products/{id}/codes", h.ImportCodes)
		r.Get("/products/{id}/stock", h.GetStock)
	})

	return r
}
