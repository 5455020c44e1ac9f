package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopLogger(t *testing.T) {
	logger := noopLogger{}
	logger.Debug("msg", "k", "v")
	logger.Info("msg", "k", "v")
	logger.Warn("msg", "k", "v")
	logger.Error("msg", "k", "v")
	noopMetricsRecorder{}.Observe(context.Background(), "noop", true, 0)
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "apply_changes", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "apply_changes", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "apply_changes", true, time.Millisecond)
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("apply_changes", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("apply_changes", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}

	again, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	again.Observe(context.Background(), "apply_changes", true, 0)
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("apply_changes", "success")); got != 3 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}
