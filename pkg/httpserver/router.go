package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOption configures the admin router
type RouterOption func(*routerOptions)

type routerOptions struct {
	logger       *slog.Logger
	gatherer     prometheus.Gatherer
	checks       []Check
	checkTimeout time.Duration
}

// WithRouterLogger sets the logger used for failed readiness checks
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(o *routerOptions) { o.logger = l }
}

// WithGatherer sets the registry served on /metrics. Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) RouterOption {
	return func(o *routerOptions) {
		if g != nil {
			o.gatherer = g
		}
	}
}

// WithChecks adds readiness checks served on /readyz
func WithChecks(checks ...Check) RouterOption {
	return func(o *routerOptions) { o.checks = append(o.checks, checks...) }
}

// WithCheckTimeout bounds the total time spent on readiness checks per request
func WithCheckTimeout(d time.Duration) RouterOption {
	return func(o *routerOptions) { o.checkTimeout = d }
}

// NewRouter builds the worker admin router:
//
//	GET /healthz  liveness
//	GET /readyz   readiness checks as JSON
//	GET /metrics  Prometheus exposition
func NewRouter(opts ...RouterOption) chi.Router {
	o := &routerOptions{
		gatherer:     prometheus.DefaultGatherer,
		checkTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(o.logger, o.checkTimeout, o.checks...))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))

	return r
}
