package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion holds the counters updated by the ingestion service. A nil
// *Ingestion records nothing.
type Ingestion struct {
	uploads     *prometheus.CounterVec
	rows        *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	assets      *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewIngestion creates the ingestion metrics and registers them with reg.
func NewIngestion(reg prometheus.Registerer) *Ingestion {
	m := &Ingestion{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetmap",
			Subsystem: "ingestion",
			Name:      "uploads_total",
			Help:      "Uploads processed, by outcome (committed, rejected, failed).",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetmap",
			Subsystem: "ingestion",
			Name:      "rows_total",
			Help:      "Data rows read from uploads, by result (accepted, rejected).",
		}, []string{"result"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetmap",
			Subsystem: "ingestion",
			Name:      "diagnostics_total",
			Help:      "Diagnostics raised while validating uploads, by severity.",
		}, []string{"severity"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetmap",
			Subsystem: "ingestion",
			Name:      "assets_reconciled_total",
			Help:      "Assets written by reconciliation, by action (created, updated).",
		}, []string{"action"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "assetmap",
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Time spent parsing and reconciling an upload.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.uploads, m.rows, m.diagnostics, m.assets, m.duration)
	return m
}

// ObserveUpload records the outcome and duration of one upload.
func (m *Ingestion) ObserveUpload(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

// AddRows records accepted and rejected data rows.
func (m *Ingestion) AddRows(accepted, rejected int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues("accepted").Add(float64(accepted))
	m.rows.WithLabelValues("rejected").Add(float64(rejected))
}

// AddDiagnostic records one diagnostic of the given severity.
func (m *Ingestion) AddDiagnostic(severity string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(severity).Inc()
}

// AddReconciled records reconciliation counts.
func (m *Ingestion) AddReconciled(created, updated int) {
	if m == nil {
		return
	}
	m.assets.WithLabelValues("created").Add(float64(created))
	m.assets.WithLabelValues("updated").Add(float64(updated))
}
