// Package metrics exposes Prometheus instrumentation for the handoff flow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	codesIssued       prometheus.Counter
	redemptions       *prometheus.CounterVec
	exchangeRejected  *prometheus.CounterVec
	storeLatency      *prometheus.HistogramVec
	rateLimitFallback prometheus.Counter
}

// New creates the handoff metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "codes_issued_total",
			Help:      "Handoff codes issued to mobile clients.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "redemptions_total",
			Help:      "Handoff redemption attempts by outcome.",
		}, []string{"outcome"}),
		exchangeRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "exchange_rejected_total",
			Help:      "Exchange requests rejected before a code was issued.",
		}, []string{"reason"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "handoff",
			Name:      "store_duration_seconds",
			Help:      "Code store operation latency.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op", "status"}),
		rateLimitFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "rate_limit_fail_open_total",
			Help:      "Exchange requests let through because the rate limiter failed.",
		}),
	}

	reg.MustRegister(m.codesIssued, m.redemptions, m.exchangeRejected, m.storeLatency, m.rateLimitFallback)
	return m
}

func (m *Metrics) CodeIssued() {
	if m == nil {
		return
	}
	m.codesIssued.Inc()
}

// Redeemed records a redemption outcome: "ok" or a sign-in error reason.
func (m *Metrics) Redeemed(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ExchangeRejected(reason string) {
	if m == nil {
		return
	}
	m.exchangeRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RateLimitFailOpen() {
	if m == nil {
		return
	}
	m.rateLimitFallback.Inc()
}

func (m *Metrics) ObserveStore(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeLatency.WithLabelValues(op, status).Observe(d.Seconds())
}
