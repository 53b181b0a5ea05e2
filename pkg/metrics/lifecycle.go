package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for every lifecycle transition attempt.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LifecycleMetrics counts state transitions and the best-effort side effects
// (audit append, notification dispatch) that run after them.
type LifecycleMetrics struct {
	transitions          *prometheus.CounterVec
	auditFailures        *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
}

// NewLifecycleMetrics registers the lifecycle counters on the provided registerer.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Lifecycle operations by entity, action and outcome.",
	}, []string{"entity", "action", "outcome"})
	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Audit rows that could not be appended after a committed change.",
	}, []string{"action"})
	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatch_failures_total",
		Help: "Notifications that failed to dispatch, by channel.",
	}, []string{"channel"})
	reg.MustRegister(transitions, auditFailures, notificationFailures)
	return &LifecycleMetrics{
		transitions:          transitions,
		auditFailures:        auditFailures,
		notificationFailures: notificationFailures,
	}
}

// ObserveTransition records one lifecycle attempt.
func (m *LifecycleMetrics) ObserveTransition(entity, action, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// IncAuditFailure counts a swallowed audit append error.
func (m *LifecycleMetrics) IncAuditFailure(action string) {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncNotificationFailure counts a swallowed notification error.
func (m *LifecycleMetrics) IncNotificationFailure(channel string) {
	if m == nil || m.notificationFailures == nil {
		return
	}
	m.notificationFailures.WithLabelValues(normalizeLabel(channel)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
