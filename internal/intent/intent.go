// SPDX-License-Identifier: MIT

// Package intent defines the NLU collaborator boundary. The core only ever
// sees a typed Result; a degraded adapter call is a first-class, non-error
// outcome with defined handler behavior, never a swallowed failure.
package intent

import (
	"context"
)

// Intent labels produced by classification.
const (
	IntentReportProblem = "report_problem"
	IntentRequestTask   = "request_task"
	IntentDeviceInfo    = "device_info"
	IntentGreeting      = "greeting"
	IntentGratitude     = "gratitude"
	IntentUnknown       = "unknown"
)

// Well-known field keys extracted by classification.
const (
	FieldDevice = "device"
)

// SessionContext is the read-only slice of session state an adapter may see.
type SessionContext struct {
	Stage    string
	Language string
	Data     map[string]string
}

// Result is the typed classification outcome. Degraded results carry the
// fallback classification plus the reason the primary path was skipped.
type Result struct {
	Intent         string            `json:"intent"`
	Confidence     float64           `json:"confidence"`
	Fields         map[string]string `json:"fields,omitempty"`
	Degraded       bool              `json:"degraded,omitempty"`
	DegradedReason string            `json:"degradedReason,omitempty"`
}

// Adapter classifies normalized user text. Implementations may block on
// network I/O; callers bound them with WithTimeout.
type Adapter interface {
	Classify(ctx context.Context, normalizedText string, sctx SessionContext) (Result, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, normalizedText string, sctx SessionContext) (Result, error)

// Classify implements Adapter.
func (f AdapterFunc) Classify(ctx context.Context, normalizedText string, sctx SessionContext) (Result, error) {
	return f(ctx, normalizedText, sctx)
}

// Degrade converts a failed primary classification into the documented
// fallback result: the local heuristic's answer, marked degraded.
func Degrade(reason, normalizedText string, sctx SessionContext) Result {
	res := Heuristic(normalizedText, sctx)
	res.Degraded = true
	res.DegradedReason = reason
	return res
}
