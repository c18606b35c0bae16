package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestChargeMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChargeMetrics(reg)

	m.IncAttempt("success")
	m.IncAttempt("failure")
	m.IncAttempt("failure")
	m.IncRetry("10001")
	m.IncOutcome("seller_is_admin")
	m.ObserveDuration(120 * time.Millisecond)
	m.SetQueueDepth(3)

	if got := testutil.ToFloat64(m.attempts.WithLabelValues("failure")); got != 2 {
		t.Fatalf("expected 2 failed attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("10001")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("seller_is_admin")); got != 1 {
		t.Fatalf("expected 1 outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 3 {
		t.Fatalf("expected queue depth 3, got %v", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Fatalf("expected 1 duration series, got %v", got)
	}
}

func TestChargeMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewChargeMetrics(nil)
	m.IncAttempt("success")
	m.IncRetry("x-timeout")
	m.IncOutcome("completed")
	m.ObserveDuration(time.Millisecond)
	m.SetQueueDepth(1)
}

func TestNormalizeLabel(t *testing.T) {
	if normalizeLabel("") != "unknown" {
		t.Fatalf("empty label should normalize to unknown")
	}
	if normalizeLabel("10001") != "10001" {
		t.Fatalf("labels should pass through")
	}
}
