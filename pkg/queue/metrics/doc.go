// Package metrics exposes queue activity to Prometheus.
//
// Logger decorates a queue.Logger so every execution reported by the executor
// and sweeper also lands in counters and a duration histogram:
//
//	ml, err := metrics.NewLogger(queue.NewSlogLogger(log), prometheus.DefaultRegisterer)
//	executor, err := queue.NewExecutor(resolver, queue.WithExecutorLogger(ml))
//
// StatsCollector reads per status counts from the store on every scrape:
//
//	prometheus.MustRegister(metrics.NewStatsCollector(store, "default", "emails"))
package metrics
