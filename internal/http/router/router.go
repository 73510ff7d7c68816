package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier-dispatch/internal/http/handlers"
	obs "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
)

// Options carries the cross-cutting pieces of the router.
type Options struct {
	Logger   logx.Logger
	Metrics  *obs.HTTPMetrics
	Gatherer prometheus.Gatherer
	// CourierLimit wraps courier actions; nil disables limiting.
	CourierLimit *ratelimit.Middleware
	Timeout      time.Duration
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(
	h *handlers.Handlers,
	couriers *handlers.CourierHandler,
	orders *handlers.OrderHandler,
	opts Options,
) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	limited := func(next http.Handler) http.Handler { return next }
	if opts.CourierLimit != nil {
		limited = opts.CourierLimit.Handler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.Observability(opts.Logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/couriers", func(r chi.Router) {
		r.Get("/", couriers.List)
		r.Post("/", couriers.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", couriers.GetByID)
			r.Get("/availability", couriers.Availability)
			r.Get("/orders", couriers.ActiveOrders)
			r.With(limited).Put("/status", couriers.UpdateStatus)
			r.With(limited).Put("/location", couriers.UpdateLocation)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", orders.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/status", orders.UpdateStatus)
			r.Get("/assignments", orders.Assignments)
			r.Post("/dispatch", orders.Dispatch)
			r.Post("/assign", orders.Assign)

			// действия курьера
			r.Group(func(r chi.Router) {
				r.Use(limited)
				r.Post("/accept", orders.Accept)
				r.Post("/reject", orders.Reject)
				r.Post("/pickup", orders.PickUp)
				r.Post("/start-delivery", orders.StartDelivery)
				r.Post("/deliver", orders.Deliver)
			})
		})
	})

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
