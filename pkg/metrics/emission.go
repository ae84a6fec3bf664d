package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EmissionMetrics records per-cycle figures for the emission coordinator.
type EmissionMetrics struct {
	cycleDuration *prometheus.HistogramVec
	claimed       *prometheus.CounterVec
	charged       *prometheus.CounterVec
	failed        *prometheus.CounterVec
	lostClaims    *prometheus.CounterVec
}

// NewEmissionMetrics registers the emission metrics on the provided registerer.
func NewEmissionMetrics(reg prometheus.Registerer) *EmissionMetrics {
	if reg == nil {
		return &EmissionMetrics{}
	}
	cycleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emission_cycle_duration_seconds",
		Help:    "Duration of one emission coordinator tick in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	claimed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emission_schedules_claimed",
		Help: "Schedules successfully claimed for processing.",
	}, []string{"worker"})
	charged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emission_charges_submitted",
		Help: "Charge requests accepted by a provider.",
	}, []string{"worker", "provider"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emission_charges_failed",
		Help: "Charge requests rejected or errored.",
	}, []string{"worker", "provider"})
	lostClaims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emission_claims_lost",
		Help: "Claim attempts lost to a concurrent worker.",
	}, []string{"worker"})
	reg.MustRegister(cycleDuration, claimed, charged, failed, lostClaims)
	return &EmissionMetrics{
		cycleDuration: cycleDuration,
		claimed:       claimed,
		charged:       charged,
		failed:        failed,
		lostClaims:    lostClaims,
	}
}

// ObserveCycle records the duration of one coordinator tick.
func (e *EmissionMetrics) ObserveCycle(worker string, duration time.Duration) {
	if e == nil || e.cycleDuration == nil {
		return
	}
	e.cycleDuration.WithLabelValues(normalizeLabel(worker)).Observe(duration.Seconds())
}

// IncClaimed increments the claimed-schedule counter.
func (e *EmissionMetrics) IncClaimed(worker string) {
	if e == nil || e.claimed == nil {
		return
	}
	e.claimed.WithLabelValues(normalizeLabel(worker)).Inc()
}

// IncCharged increments the accepted-charge counter.
func (e *EmissionMetrics) IncCharged(worker, provider string) {
	if e == nil || e.charged == nil {
		return
	}
	e.charged.WithLabelValues(normalizeLabel(worker), normalizeLabel(provider)).Inc()
}

// IncFailed increments the failed-charge counter.
func (e *EmissionMetrics) IncFailed(worker, provider string) {
	if e == nil || e.failed == nil {
		return
	}
	e.failed.WithLabelValues(normalizeLabel(worker), normalizeLabel(provider)).Inc()
}

// IncLostClaim increments the lost-claim counter.
func (e *EmissionMetrics) IncLostClaim(worker string) {
	if e == nil || e.lostClaims == nil {
		return
	}
	e.lostClaims.WithLabelValues(normalizeLabel(worker)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
