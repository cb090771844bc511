package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the service's Prometheus collectors.
type Metrics struct {
	ReportRequests       *prometheus.CounterVec
	SnapshotObservations prometheus.Gauge
	RefreshFailures      prometheus.Counter
	RefreshDuration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "report_requests_total",
			Help:      "Report requests by HTTP status code.",
		}, []string{"code"}),
		SnapshotObservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricewatch",
			Name:      "snapshot_observations",
			Help:      "Observations in the live snapshot.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "snapshot_refresh_failures_total",
			Help:      "Snapshot refreshes that kept the previous snapshot.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Name:      "snapshot_refresh_duration_seconds",
			Help:      "Time spent fetching and normalizing a snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.ReportRequests, m.SnapshotObservations, m.RefreshFailures, m.RefreshDuration)
	return m
}
