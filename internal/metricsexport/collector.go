// Package metricsexport bridges the go-ethereum metrics registry this repo
// counts writes and ticks in (internal/snapshot, internal/scheduler) onto
// client_golang's Collector interface, so cmd/statshistd's promhttp-served
// /metrics endpoint actually exposes them. The two libraries keep their own
// registries; nothing here makes go-ethereum's metrics package aware of
// Prometheus beyond what this collector reads out of it on each scrape.
package metricsexport

import (
	"strings"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector over a go-ethereum
// metrics.Registry, reading it fresh on every Collect call the way the
// teacher's own metrics/prometheus.Handler reads metrics.DefaultRegistry
// fresh on every scrape.
type Collector struct {
	registry  metrics.Registry
	namespace string
}

// NewCollector wraps registry (metrics.DefaultRegistry if nil), prefixing
// every exported metric name with namespace.
func NewCollector(registry metrics.Registry, namespace string) *Collector {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	return &Collector{registry: registry, namespace: namespace}
}

// Describe emits no fixed descriptors: the set of go-ethereum metrics is
// open-ended (every Tree/Ticker registers its own counters at construction
// time), so this is an unchecked collector — client_golang supports that
// explicitly via prometheus.Registry.Register without a Describe contract.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect reads every counter currently in the registry and emits it as a
// Prometheus counter metric.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.registry.Each(func(name string, i interface{}) {
		counter, ok := i.(metrics.Counter)
		if !ok {
			return
		}
		desc := prometheus.NewDesc(c.promName(name), "go-ethereum metrics counter "+name, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(counter.Snapshot().Count()))
	})
}

// promName turns a go-ethereum metric name such as
// "scheduler/break_count/tick/ok" into a valid Prometheus metric name such
// as "statshistd_scheduler_break_count_tick_ok".
func (c *Collector) promName(name string) string {
	sanitized := strings.NewReplacer("/", "_", ".", "_", "-", "_").Replace(name)
	if c.namespace == "" {
		return sanitized
	}
	return c.namespace + "_" + sanitized
}
