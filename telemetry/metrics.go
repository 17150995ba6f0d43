// telemetry/metrics.go

// Package telemetry holds the prometheus collectors for pipeline runs. A
// batch run writes them to a node_exporter textfile when it ends; serve
// mode exposes them over HTTP. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "masim_analysis"

type Metrics struct {
	Registry *prometheus.Registry

	replicatesFetched prometheus.Counter
	replicatesCached  prometheus.Counter
	itemFailures      *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	lastSuccess       *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		replicatesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replicates_fetched_total",
			Help:      "Replicates queried from the simulation database and stored.",
		}),
		replicatesCached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replicates_cached_total",
			Help:      "Replicates skipped because a cached file already existed.",
		}),
		itemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Replicates or configurations that failed and were skipped.",
		}, []string{"stage"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_cache_lookups_total",
			Help:      "Aggregate cache lookups by result.",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time the stage last completed without item failures.",
		}, []string{"stage"}),
	}
	m.Registry.MustRegister(m.replicatesFetched, m.replicatesCached, m.itemFailures,
		m.cacheLookups, m.stageDuration, m.lastSuccess)
	return m
}

func (m *Metrics) ReplicateFetched() {
	if m != nil {
		m.replicatesFetched.Inc()
	}
}

func (m *Metrics) ReplicateCached() {
	if m != nil {
		m.replicatesCached.Inc()
	}
}

func (m *Metrics) ItemFailed(stage string) {
	if m != nil {
		m.itemFailures.WithLabelValues(stage).Inc()
	}
}

// CacheLookup records "hit", "miss" or "refresh".
func (m *Metrics) CacheLookup(result string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(result).Inc()
	}
}

// StageDone observes the duration since start and, when ok, stamps the
// last-success gauge.
func (m *Metrics) StageDone(stage string, start time.Time, ok bool) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if ok {
		m.lastSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
}

// WriteTextfile writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
