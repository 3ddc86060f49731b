// Package metrics exposes Prometheus metrics for the archival reconciler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datalab-ops/permafrost/pkg/config"
)

// Collector owns every Prometheus metric Permafrost records. A nil
// *Collector is valid and records nothing, so callers never need to guard
// the disabled case.
type Collector struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	resourcesMarked   *prometheus.CounterVec
	filesArchived     prometheus.Counter
	archiveFailures   prometheus.Counter
	remoteCallsTotal  *prometheus.CounterVec
	digestsSent       *prometheus.CounterVec
	pendingBucketSize *prometheus.GaugeVec
}

// NewCollector creates a metrics collector on a private registry.
// Returns nil when metrics are disabled.
func NewCollector(cfg config.MetricsConfig) *Collector {
	if !cfg.Enabled {
		return nil
	}

	ns := cfg.Namespace
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "runs_total",
				Help:      "Reconciliation runs by phase outcome",
			},
			[]string{"phase"},
		),
		resourcesMarked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "resources_marked_total",
				Help:      "Resources marked for archival by bucket",
			},
			[]string{"bucket"},
		),
		filesArchived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "files_archived_total",
				Help:      "Files archived during commit phases",
			},
		),
		archiveFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "archive_failures_total",
				Help:      "Per-item archive failures recorded to the failed log",
			},
		),
		remoteCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "remote_calls_total",
				Help:      "Remote platform calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		digestsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "digests_sent_total",
				Help:      "Notification digests sent by purpose",
			},
			[]string{"purpose"},
		),
		pendingBucketSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "pending_bucket_size",
				Help:      "Entries pending archival per bucket after the mark phase",
			},
			[]string{"bucket"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.resourcesMarked,
		c.filesArchived,
		c.archiveFailures,
		c.remoteCallsTotal,
		c.digestsSent,
		c.pendingBucketSize,
	)

	return c
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRun counts one completed phase ("mark", "commit", "countdown").
func (c *Collector) RecordRun(phase string) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(phase).Inc()
}

// RecordMarked counts resources newly marked into a bucket.
func (c *Collector) RecordMarked(bucket string, n int) {
	if c == nil {
		return
	}
	c.resourcesMarked.WithLabelValues(bucket).Add(float64(n))
}

// RecordArchived counts files archived.
func (c *Collector) RecordArchived(n int) {
	if c == nil {
		return
	}
	c.filesArchived.Add(float64(n))
}

// RecordArchiveFailure counts one per-item archive failure.
func (c *Collector) RecordArchiveFailure() {
	if c == nil {
		return
	}
	c.archiveFailures.Inc()
}

// RecordRemoteCall counts one platform API call.
func (c *Collector) RecordRemoteCall(operation, status string) {
	if c == nil {
		return
	}
	c.remoteCallsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDigest counts one digest delivery.
func (c *Collector) RecordDigest(purpose string) {
	if c == nil {
		return
	}
	c.digestsSent.WithLabelValues(purpose).Inc()
}

// SetPending records the bucket size after a mark phase.
func (c *Collector) SetPending(bucket string, n int) {
	if c == nil {
		return
	}
	c.pendingBucketSize.WithLabelValues(bucket).Set(float64(n))
}
