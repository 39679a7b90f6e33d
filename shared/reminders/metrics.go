package reminders

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// FiresTotal counts alarm firings by outcome (delivered, disabled, store_error).
	FiresTotal *prometheus.CounterVec

	// EffectFailures counts failed side effects by effect and reason.
	EffectFailures *prometheus.CounterVec

	// SchedulesTotal counts armed alarms by mode (exact, inexact).
	SchedulesTotal *prometheus.CounterVec

	// CancelsTotal counts cancellations.
	CancelsTotal prometheus.Counter

	// NextReminder is the unix time of the pending reminder, 0 when idle.
	NextReminder prometheus.Gauge

	// FireDuration is the time spent handling one firing.
	FireDuration prometheus.Histogram
}

// NewMetrics creates and registers reminder metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FiresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fires_total",
				Help:      "Total number of reminder alarm firings",
			},
			[]string{"outcome"},
		),

		EffectFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "effect_failures_total",
				Help:      "Total number of failed reminder side effects",
			},
			[]string{"effect", "reason"},
		),

		SchedulesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedules_total",
				Help:      "Total number of armed reminder alarms",
			},
			[]string{"mode"},
		),

		CancelsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancels_total",
				Help:      "Total number of cancelled reminder alarms",
			},
		),

		NextReminder: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "next_reminder_timestamp_seconds",
				Help:      "Unix time of the pending reminder, 0 when none",
			},
		),

		FireDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fire_duration_seconds",
				Help:      "Time to handle a reminder firing",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),
	}
}

// IncFired increments the firing counter for outcome.
func (m *Metrics) IncFired(outcome string) {
	if m == nil {
		return
	}
	m.FiresTotal.WithLabelValues(outcome).Inc()
}

// IncEffectFailure increments the failure counter for an effect.
func (m *Metrics) IncEffectFailure(effect, reason string) {
	if m == nil {
		return
	}
	m.EffectFailures.WithLabelValues(effect, reason).Inc()
}

// IncScheduled records an armed alarm and its trigger time.
func (m *Metrics) IncScheduled(mode string, at time.Time) {
	if m == nil {
		return
	}
	m.SchedulesTotal.WithLabelValues(mode).Inc()
	m.NextReminder.Set(float64(at.Unix()))
}

// IncCancelled records a cancellation.
func (m *Metrics) IncCancelled() {
	if m == nil {
		return
	}
	m.CancelsTotal.Inc()
	m.NextReminder.Set(0)
}

// ObserveFireDuration records the time taken to handle a firing.
func (m *Metrics) ObserveFireDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FireDuration.Observe(d.Seconds())
}
