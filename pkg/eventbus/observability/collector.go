package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource exposes point-in-time bus statistics. A Dispatcher satisfies it.
type StatsSource interface {
	QueueDepth() int
	DeliveredTotal() uint64
	HandlerCounts() map[string]int
}

// Collector is a prometheus.Collector that reads a StatsSource on every
// scrape. Register it with a prometheus.Registerer of your choice.
type Collector struct {
	src       StatsSource
	depth     *prometheus.Desc
	delivered *prometheus.Desc
	handlers  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector for src.
func NewCollector(src StatsSource) *Collector {
	return &Collector{
		src: src,
		depth: prometheus.NewDesc(
			prometheus.BuildFQName("eventbus", "pipeline", "queue_depth"),
			"Envelopes waiting for the delivery worker.",
			nil, nil,
		),
		delivered: prometheus.NewDesc(
			prometheus.BuildFQName("eventbus", "pipeline", "delivered_total"),
			"Envelopes processed by the delivery worker.",
			nil, nil,
		),
		handlers: prometheus.NewDesc(
			prometheus.BuildFQName("eventbus", "registry", "handlers"),
			"Registered handlers per event name.",
			[]string{"event"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
	ch <- c.delivered
	ch <- c.handlers
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(c.src.QueueDepth()))
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(c.src.DeliveredTotal()))
	for name, n := range c.src.HandlerCounts() {
		ch <- prometheus.MustNewConstMetric(c.handlers, prometheus.GaugeValue, float64(n), name)
	}
}
