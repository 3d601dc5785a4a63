// Package httpserver runs the worker's admin HTTP endpoint.
//
// Server wraps net/http with context driven lifecycle: Run serves until the
// context is cancelled and then shuts down gracefully within the configured
// timeout. Start failures are joined with ErrStart and shutdown failures with
// ErrShutdown.
//
// NewRouter builds a chi router exposing liveness (/healthz), readiness
// (/readyz) and Prometheus metrics (/metrics). Readiness is composed from
// named Check values, typically the store's Healthcheck and Worker.Healthy:
//
//	router := httpserver.NewRouter(
//		httpserver.WithRouterLogger(log),
//		httpserver.WithGatherer(registry),
//		httpserver.WithChecks(
//			httpserver.NewCheck("postgres", pg.Healthcheck(pool)),
//			httpserver.NewCheck("worker", func(context.Context) error { return worker.Healthy() }),
//		),
//	)
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
package httpserver
