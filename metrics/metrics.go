// Package metrics exports loader events as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/wasm-host/loader"
)

var defaultLoadBuckets = prometheus.ExponentialBuckets(0.0005, 2, 16)

// Collector implements loader.Observer and prometheus.Collector.
type Collector struct {
	pending  prometheus.Gauge
	loads    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ loader.Observer = (*Collector)(nil)

// New creates a collector with metric names under namespace.
func New(namespace string) *Collector {
	return &Collector{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_dependencies_pending",
			Help:      "Pending run dependencies across in-flight loads.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_loads_total",
			Help:      "Module loads by instantiation strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_load_duration_seconds",
			Help:      "Time from fetch to ready per load.",
			Buckets:   defaultLoadBuckets,
		}, []string{"strategy"}),
	}
}

// Dependencies applies one load's change to the pending total.
func (c *Collector) Dependencies(_, delta int) {
	c.pending.Add(float64(delta))
}

// Loaded counts a finished load.
func (c *Collector) Loaded(strategy loader.Strategy, outcome loader.Outcome, elapsed time.Duration) {
	c.loads.WithLabelValues(string(strategy), string(outcome)).Inc()
	c.duration.WithLabelValues(string(strategy)).Observe(elapsed.Seconds())
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.pending.Describe(ch)
	c.loads.Describe(ch)
	c.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.pending.Collect(ch)
	c.loads.Collect(ch)
	c.duration.Collect(ch)
}

// Register adds c to reg, prometheus.DefaultRegisterer when nil.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(c)
}
