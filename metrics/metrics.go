// Package metrics provides Prometheus metrics for the session layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_guard"

var (
	// RefreshTotal counts session refresh attempts by trigger and result.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Total number of session refresh attempts",
		},
		[]string{"trigger", "result"},
	)

	// SessionErrorsHandled counts forced sign-outs.
	SessionErrorsHandled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_handled_total",
			Help:      "Total number of session errors escalated to sign-out",
		},
	)

	// SecureCallTotal counts secure call outcomes by operation and class.
	SecureCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secure_call_total",
			Help:      "Total number of secure calls by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RetryAttempts counts retry executor attempts by result.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry executor attempts",
		},
		[]string{"result"},
	)

	// IdentityLookups counts identity resolutions by source.
	IdentityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_lookups_total",
			Help:      "Identity resolutions by source (hit, joined, strategy_a, strategy_b, miss)",
		},
		[]string{"source"},
	)

	// ActiveClients tracks per-session clients held by the server.
	ActiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_clients",
			Help:      "Number of per-session clients currently cached",
		},
	)
)

// RecordRefresh records a refresh attempt. trigger is "proactive" or "reactive".
func RecordRefresh(trigger string, ok bool) {
	RefreshTotal.WithLabelValues(trigger, result(ok)).Inc()
}

// RecordSessionErrorHandled records a forced sign-out.
func RecordSessionErrorHandled() {
	SessionErrorsHandled.Inc()
}

// RecordSecureCall records a secure call outcome.
func RecordSecureCall(operation, outcome string) {
	if operation == "" {
		operation = "unnamed"
	}
	SecureCallTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRetryAttempt records one retry executor attempt.
func RecordRetryAttempt(ok bool) {
	RetryAttempts.WithLabelValues(result(ok)).Inc()
}

// RecordIdentityLookup records where an identity resolution was answered from.
func RecordIdentityLookup(source string) {
	IdentityLookups.WithLabelValues(source).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
