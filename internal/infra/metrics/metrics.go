// Package metrics counts pipeline work on a private Prometheus registry. A run can dump the
// registry in the node-exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors for one process.
type Metrics struct {
	Registry *prometheus.Registry

	ItemsTotal         *prometheus.CounterVec
	FramesTotal        *prometheus.CounterVec
	BaselineFailures   prometheus.Counter
	StageDuration      *prometheus.HistogramVec
	LastRunTimestamp   prometheus.Gauge
	LastRunFailedItems prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormruler_items_total",
			Help: "Units of work per stage, by status",
		}, []string{"stage", "status"}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormruler_frames_total",
			Help: "Frames handled per stage, by result",
		}, []string{"stage", "result"}),
		BaselineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wormruler_baseline_failures_total",
			Help: "Samples whose baseline window had no measurable frame",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wormruler_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wormruler_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		LastRunFailedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wormruler_last_run_failed_items",
			Help: "Failed units of work in the last run",
		}),
	}
	m.Registry.MustRegister(
		m.ItemsTotal,
		m.FramesTotal,
		m.BaselineFailures,
		m.StageDuration,
		m.LastRunTimestamp,
		m.LastRunFailedItems,
	)
	return m
}

// WriteTextfile dumps the registry to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
