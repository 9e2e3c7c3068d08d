// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the daemon.
const (
	SessionIDKey   = "conversation.session_id"
	StageBeforeKey = "conversation.stage_before"
	StageAfterKey  = "conversation.stage_after"
	EventKindKey   = "conversation.event_kind"
	TriggerKey     = "conversation.trigger"
	OutcomeKey     = "conversation.outcome"
	SequenceKey    = "conversation.sequence"

	IntentKey         = "intent.label"
	IntentDegradedKey = "intent.degraded"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// TurnAttributes creates the span attributes for one conversation turn.
func TurnAttributes(sessionID, stageBefore, stageAfter, outcome string, sequence uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.String(StageBeforeKey, stageBefore),
		attribute.String(StageAfterKey, stageAfter),
		attribute.String(OutcomeKey, outcome),
		attribute.Int64(SequenceKey, int64(sequence)),
	}
}

// IntentAttributes creates span attributes for a classification call.
func IntentAttributes(label string, degraded bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IntentKey, label),
		attribute.Bool(IntentDegradedKey, degraded),
	}
}

// ErrorAttributes creates span attributes for a failure.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errType),
	}
}
