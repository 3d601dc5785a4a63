package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

var jobsDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "jobs"),
	"Stored job records by queue and status",
	[]string{"queue", "status"}, nil,
)

var storeErrorDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "stats_error"),
	"Set to 1 when reading queue statistics failed during the scrape",
	[]string{"queue"}, nil,
)

// StatsCollector exports queue depth gauges read from the store on every scrape
type StatsCollector struct {
	reader  queue.StatsReader
	queues  []string
	timeout time.Duration
}

var _ prometheus.Collector = (*StatsCollector)(nil)

// NewStatsCollector creates a collector for queues. Without queue names it reports the
// aggregate across all queues under the label queue="".
func NewStatsCollector(reader queue.StatsReader, queues ...string) *StatsCollector {
	if len(queues) == 0 {
		queues = []string{""}
	}
	return &StatsCollector{
		reader:  reader,
		queues:  queues,
		timeout: 5 * time.Second,
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- jobsDesc
	ch <- storeErrorDesc
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	for _, q := range c.queues {
		stats, err := c.reader.Stats(ctx, q)
		if err != nil {
			ch <- prometheus.MustNewConstMetric(storeErrorDesc, prometheus.GaugeValue, 1, q)
			continue
		}
		ch <- prometheus.MustNewConstMetric(storeErrorDesc, prometheus.GaugeValue, 0, q)
		for _, s := range queue.Statuses {
			ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.GaugeValue, float64(stats.Count(s)), q, s.String())
		}
	}
}
