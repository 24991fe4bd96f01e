package streak

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the streak collectors. A nil *Metrics records nothing.
type Metrics struct {
	updates   *prometheus.CounterVec
	conflicts prometheus.Counter
	failures  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streak_updates_total",
				Help: "Successful streak updates by outcome",
			},
			[]string{"outcome"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "streak_update_conflicts_total",
				Help: "Compare-and-swap conflicts seen while updating streaks",
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streak_update_failures_total",
				Help: "Streak updates that returned an error, by reason",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.updates, m.conflicts, m.failures)
	}
	return m
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observeConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) observeFailure(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(FailureReason(err)).Inc()
}

// FailureReason maps an error returned by RecordActivity to a metric label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid"
	default:
		return "unavailable"
	}
}
