// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the conversation core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convogate_turns_total",
		Help: "Processed turns by stage and outcome",
	}, []string{"stage", "outcome"}) // outcome=accepted|rejected|fault|duplicate

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "convogate_turn_duration_seconds",
		Help:    "End-to-end turn processing time",
		Buckets: prometheus.DefBuckets,
	})

	contractViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convogate_contract_violations_total",
		Help: "Contract violations recorded on turn logs by stage and code",
	}, []string{"stage", "code"})

	intentDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convogate_intent_degraded_total",
		Help: "Intent adapter calls answered via the fallback path",
	})

	intentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convogate_intent_requests_total",
		Help: "Intent adapter calls by status",
	}, []string{"status"}) // status=ok|degraded|timeout

	dedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convogate_dedup_hits_total",
		Help: "Requests answered as duplicates via the idempotency claim",
	})

	storeDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convogate_store_degradations_total",
		Help: "Durable store operations served by the in-process fallback",
	}, []string{"op"}) // op=get|put|try_claim

	storeFallbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "convogate_store_fallback_active",
		Help: "Whether the in-process fallback store is currently active (1) or not (0)",
	})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convogate_sessions_started_total",
		Help: "New sessions created",
	})

	loopsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convogate_loops_detected_total",
		Help: "Conversation loops flagged by the flow auditor",
	})

	backwardTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convogate_backward_transitions_total",
		Help: "Non-whitelisted backward stage transitions flagged by the flow auditor",
	})

	auditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convogate_audit_entries_dropped_total",
		Help: "Flow audit entries dropped because the stream buffer was full",
	})
)

func RecordTurn(stage, outcome string) { turnsTotal.WithLabelValues(stage, outcome).Inc() }
func ObserveTurnDuration(seconds float64) { turnDuration.Observe(seconds) }
func IncContractViolation(stage, code string) {
	contractViolations.WithLabelValues(stage, code).Inc()
}
func IncIntentDegraded()                { intentDegraded.Inc() }
func RecordIntentRequest(status string) { intentRequests.WithLabelValues(status).Inc() }
func IncDedupHit()                      { dedupHits.Inc() }
func IncStoreDegradation(op string)     { storeDegradations.WithLabelValues(op).Inc() }
func IncSessionStarted()                { sessionsStarted.Inc() }
func IncLoopDetected()                  { loopsDetected.Inc() }
func IncBackwardTransition()            { backwardTransitions.Inc() }
func IncAuditDropped()                  { auditDropped.Inc() }

func SetStoreFallbackActive(active bool) {
	if active {
		storeFallbackActive.Set(1)
		return
	}
	storeFallbackActive.Set(0)
}
