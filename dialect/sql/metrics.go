package sql

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a QueryStats as prometheus counters.
type Collector struct {
	stats                                          *QueryStats
	queries, execs, batches, duration, slow, errors *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading stats on every scrape. Metric
// names are prefixed by namespace and the "sql" subsystem.
func NewCollector(stats *QueryStats, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "sql", name), help, nil, nil)
	}
	return &Collector{
		stats:    stats,
		queries:  desc("queries_total", "Number of executed queries."),
		execs:    desc("execs_total", "Number of executed statements, batch rows included."),
		batches:  desc("batches_total", "Number of executed batches."),
		duration: desc("duration_seconds_total", "Total time spent executing statements."),
		slow:     desc("slow_queries_total", "Number of statements slower than the slow threshold."),
		errors:   desc("errors_total", "Number of failed statements."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.queries, c.execs, c.batches, c.duration, c.slow, c.errors} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.TotalQueries))
	ch <- prometheus.MustNewConstMetric(c.execs, prometheus.CounterValue, float64(s.TotalExecs))
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(s.TotalBatches))
	ch <- prometheus.MustNewConstMetric(c.duration, prometheus.CounterValue, s.TotalDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.slow, prometheus.CounterValue, float64(s.SlowQueries))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
}
