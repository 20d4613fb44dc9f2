package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIngestionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngestion(reg)

	m.ObserveUpload("committed", time.Now())
	m.AddRows(3, 1)
	m.AddDiagnostic("warning")
	m.AddDiagnostic("error")
	m.AddDiagnostic("error")
	m.AddReconciled(2, 1)

	if got := testutil.ToFloat64(m.uploads.WithLabelValues("committed")); got != 1 {
		t.Fatalf("expected 1 committed upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.rows.WithLabelValues("accepted")); got != 3 {
		t.Fatalf("expected 3 accepted rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.diagnostics.WithLabelValues("error")); got != 2 {
		t.Fatalf("expected 2 error diagnostics, got %v", got)
	}
	if got := testutil.ToFloat64(m.assets.WithLabelValues("updated")); got != 1 {
		t.Fatalf("expected 1 updated asset, got %v", got)
	}

	count, err := testutil.GatherAndCount(reg, "assetmap_ingestion_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected duration histogram to be registered, got %d series", count)
	}
}

func TestNilIngestionIsNoop(t *testing.T) {
	var m *Ingestion
	m.ObserveUpload("failed", time.Now())
	m.AddRows(1, 1)
	m.AddDiagnostic("error")
	m.AddReconciled(1, 1)
}
