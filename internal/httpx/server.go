package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/checkout"
	"github.com/ariefcatur/go-jewelry-checkout/internal/metrics"
	"github.com/ariefcatur/go-jewelry-checkout/internal/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Checkout *checkout.Service
	Tracking *tracking.Service
	Catalog  Catalog
	Auth     *Authenticator
	Log      *zap.Logger
	Metrics  *metrics.HTTP
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(requestLogger(log, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	h := &OrdersHandler{Checkout: d.Checkout, Tracking: d.Tracking, Catalog: d.Catalog}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/tracking/{code}", h.trackByCode)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Require)
			h.Register(r)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/orders/{id}/confirm-payment", h.confirmPayment)
				r.Post("/orders/{id}/tracking", h.addTrackingEvent)
			})
		})
	})
	return r
}
