// Package metrics exposes Prometheus collectors for order flow, matching
// latency, and book depth, backing the Metrics port in pkg/interfaces.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexustrade/lobengine/pkg/interfaces"
)

// Registry bundles the engine's collectors and implements
// pkg/interfaces.Metrics.
type Registry struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// New creates a Registry with the engine's fixed collector set and
// registers it with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	r.counters["orders_total"] = r.newCounter(reg, "orders_total", "Orders accepted, partitioned by kind and side.", "kind", "side")
	r.counters["executions_total"] = r.newCounter(reg, "executions_total", "Fills produced by the matching engine, partitioned by symbol.", "symbol")
	r.counters["rejections_total"] = r.newCounter(reg, "rejections_total", "Commands rejected, partitioned by error kind.", "error")

	r.gauges["book_depth_levels"] = r.newGauge(reg, "book_depth_levels", "Resting price levels, partitioned by symbol and side.", "symbol", "side")
	r.gauges["active_orders"] = r.newGauge(reg, "active_orders", "Currently resting orders, partitioned by symbol.", "symbol")

	r.histograms["match_pass_seconds"] = r.newHistogram(reg, "match_pass_seconds", "Wall time of a single Match() pass across all books.", prometheus.ExponentialBuckets(1e-6, 4, 10))

	return r
}

func (r *Registry) newCounter(reg prometheus.Registerer, name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lobengine", Name: name, Help: help}, labels)
	reg.MustRegister(c)
	return c
}

func (r *Registry) newGauge(reg prometheus.Registerer, name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "lobengine", Name: name, Help: help}, labels)
	reg.MustRegister(g)
	return g
}

func (r *Registry) newHistogram(reg prometheus.Registerer, name, help string, buckets []float64) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "lobengine", Name: name, Help: help, Buckets: buckets}, nil)
	reg.MustRegister(h)
	return h
}

func labelValues(tags map[string]string, keys ...string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = tags[k]
	}
	return out
}

// Counter implements pkg/interfaces.Metrics.
func (r *Registry) Counter(name string, value float64, tags map[string]string) {
	c, ok := r.counters[name]
	if !ok {
		return
	}
	c.WithLabelValues(labelValues(tags, labelKeysFor(name)...)...).Add(value)
}

// Gauge implements pkg/interfaces.Metrics.
func (r *Registry) Gauge(name string, value float64, tags map[string]string) {
	g, ok := r.gauges[name]
	if !ok {
		return
	}
	g.WithLabelValues(labelValues(tags, labelKeysFor(name)...)...).Set(value)
}

// GaugeAdd applies a relative delta to a gauge, for callers tracking a
// running count (book depth, active orders) rather than a point-in-time
// value.
func (r *Registry) GaugeAdd(name string, delta float64, tags map[string]string) {
	g, ok := r.gauges[name]
	if !ok {
		return
	}
	g.WithLabelValues(labelValues(tags, labelKeysFor(name)...)...).Add(delta)
}

// Histogram implements pkg/interfaces.Metrics.
func (r *Registry) Histogram(name string, value float64, tags map[string]string) {
	h, ok := r.histograms[name]
	if !ok {
		return
	}
	h.WithLabelValues().Observe(value)
}

// Timer implements pkg/interfaces.Metrics.
func (r *Registry) Timer(name string, duration time.Duration, tags map[string]string) {
	r.Histogram(name, duration.Seconds(), tags)
}

func labelKeysFor(name string) []string {
	switch name {
	case "orders_total":
		return []string{"kind", "side"}
	case "executions_total", "active_orders":
		return []string{"symbol"}
	case "rejections_total":
		return []string{"error"}
	case "book_depth_levels":
		return []string{"symbol", "side"}
	default:
		return nil
	}
}

var _ interfaces.Metrics = (*Registry)(nil)
