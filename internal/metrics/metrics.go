package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// generation
	RowsGenerated     *prometheus.CounterVec
	VelocityFallbacks prometheus.Counter
	StageSeconds      *prometheus.HistogramVec

	// forecasting
	ForecastQueries *prometheus.CounterVec

	// persistence
	SnapshotsWritten   prometheus.Counter
	ChangelogAppended  prometheus.Counter
	LastManifestAgeSec prometheus.Gauge

	// recovery
	Applied     prometheus.Counter
	Skipped     prometheus.Counter
	TTRSec      prometheus.Gauge
	ReplayBytes prometheus.Counter
	Lag         prometheus.Gauge

	// transactional publish
	TxProduced   prometheus.Counter
	TxAborted    prometheus.Counter
	TxLatencySec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stormguard_rows_generated_total",
		Help: "Rows generated per table.",
	}, []string{"table"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_velocity_fallbacks_total"})
	stage := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stormguard_stage_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stormguard_forecast_queries_total",
		Help: "Forecast queries by method (moving_average or baseline).",
	}, []string{"method"})

	snapshots := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_snapshots_written_total"})
	changelogAppended := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_changelog_appended_total"})
	lastAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "stormguard_last_manifest_age_seconds"})

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_replay_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_replay_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "stormguard_recovery_ttr_seconds"})
	replayBytes := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_replay_bytes_total"})
	lag := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stormguard_replay_lag_entries",
		Help: "Changelog entries published after the last applied one.",
	})

	txProduced := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_tx_produced_total"})
	txAborted := prometheus.NewCounter(prometheus.CounterOpts{Name: "stormguard_tx_aborted_total"})
	txLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stormguard_tx_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(rows, fallbacks, stage, queries, snapshots, changelogAppended, lastAge,
		applied, skipped, ttr, replayBytes, lag, txProduced, txAborted, txLatency)
	return &Registry{
		reg:                r,
		RowsGenerated:      rows,
		VelocityFallbacks:  fallbacks,
		StageSeconds:       stage,
		ForecastQueries:    queries,
		SnapshotsWritten:   snapshots,
		ChangelogAppended:  changelogAppended,
		LastManifestAgeSec: lastAge,
		Applied:            applied,
		Skipped:            skipped,
		TTRSec:             ttr,
		ReplayBytes:        replayBytes,
		Lag:                lag,
		TxProduced:         txProduced,
		TxAborted:          txAborted,
		TxLatencySec:       txLatency,
	}
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
