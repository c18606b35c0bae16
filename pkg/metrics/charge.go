package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChargeMetrics records gateway attempt and commission outcome counters.
type ChargeMetrics struct {
	attempts   *prometheus.CounterVec
	retries    *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

// NewChargeMetrics registers the commission charge metrics on the provided registerer.
func NewChargeMetrics(reg prometheus.Registerer) *ChargeMetrics {
	if reg == nil {
		return &ChargeMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_attempts_total",
		Help: "Gateway call attempts by terminal result.",
	}, []string{"result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Retries triggered per gateway failure code.",
	}, []string{"code"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_outcomes_total",
		Help: "Commission charges by terminal status.",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "commission_charge_duration_seconds",
		Help:    "Duration of full commission charges including retries.",
		Buckets: prometheus.DefBuckets,
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_queue_depth",
		Help: "Jobs waiting in the in-process dispatch queue.",
	})
	reg.MustRegister(attempts, retries, outcomes, duration, queueDepth)
	return &ChargeMetrics{
		attempts:   attempts,
		retries:    retries,
		outcomes:   outcomes,
		duration:   duration,
		queueDepth: queueDepth,
	}
}

// IncAttempt counts one gateway attempt with its result ("success" or "failure").
func (c *ChargeMetrics) IncAttempt(result string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRetry counts a retry decision for the given failure code.
func (c *ChargeMetrics) IncRetry(code string) {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncOutcome counts a terminal commission status.
func (c *ChargeMetrics) IncOutcome(status string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveDuration records the duration of a full charge, retries included.
func (c *ChargeMetrics) ObserveDuration(duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.Observe(duration.Seconds())
}

// SetQueueDepth records the current dispatch queue depth.
func (c *ChargeMetrics) SetQueueDepth(depth int) {
	if c == nil || c.queueDepth == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
