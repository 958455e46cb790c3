package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/GlebRadaev/payflow/docs"
	paymenthandlers "github.com/GlebRadaev/payflow/internal/handlers/payments"
	"github.com/GlebRadaev/payflow/internal/service"
)

type PaymentHandler interface {
	CreatePaymentV1(w http.ResponseWriter, r *http.Request)
	CreatePaymentV2(w http.ResponseWriter, r *http.Request)
	GetPayment(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	PaymentHandler PaymentHandler
}

func New(s *service.Services) *Handlers {
	return &Handlers{
		PaymentHandler: paymenthandlers.New(s.InitiationService),
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1/payments", func(r chi.Router) {
			r.Post("/", h.PaymentHandler.CreatePaymentV1)
			r.Get("/{paymentID}", h.PaymentHandler.GetPayment)
		})
		r.Route("/v2/payments", func(r chi.Router) {
			r.Post("/", h.PaymentHandler.CreatePaymentV2)
			r.Get("/{paymentID}", h.PaymentHandler.GetPayment)
		})
	})

	return r
}
