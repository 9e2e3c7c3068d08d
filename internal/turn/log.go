// SPDX-License-Identifier: MIT

package turn

import (
	"time"

	"github.com/google/uuid"

	"github.com/stitech/convogate/internal/stage"
)

// IntentSummary is the flattened classification outcome carried on a TurnLog.
// A degraded adapter call is a first-class summary, not an error.
type IntentSummary struct {
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Degraded   bool    `json:"degraded,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// TurnLog is the immutable record of one processed request, accepted or
// rejected. It is appended to the session transcript and mirrored to the
// flow audit stream, and is never mutated afterwards.
type TurnLog struct {
	TurnID      string            `json:"turnId"`
	Timestamp   time.Time         `json:"timestamp"`
	SessionKey  string            `json:"sessionKey"`
	Sequence    uint64            `json:"sequence"`
	StageBefore stage.Stage       `json:"stageBefore"`
	Event       UserEvent         `json:"event"`
	Intent      IntentSummary     `json:"intent"`
	Reply       string            `json:"reply"`
	StageAfter  stage.Stage       `json:"stageAfter"`
	// ButtonsShown is the exact ordered list transmitted to the client for
	// this turn, captured after SanitizeOutgoingButtons has run.
	ButtonsShown []stage.Button    `json:"buttonsShown"`
	Reason       string            `json:"reason"`
	Violations   []Violation       `json:"violations,omitempty"`
	DurationMS   int64             `json:"durationMs"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewTurnLog builds the record for one turn. It assigns a unique turn ID
// and stamps the current time; everything else is supplied by the caller
// and copied as-is.
func NewTurnLog(sessionKey string, seq uint64, before, after stage.Stage, ev UserEvent,
	intent IntentSummary, reply, reason string, shown []stage.Button, violations []Violation) TurnLog {
	copied := make([]stage.Button, len(shown))
	copy(copied, shown)
	return TurnLog{
		TurnID:       uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		SessionKey:   sessionKey,
		Sequence:     seq,
		StageBefore:  before,
		Event:        ev,
		Intent:       intent,
		Reply:        reply,
		StageAfter:   after,
		ButtonsShown: copied,
		Reason:       reason,
		Violations:   violations,
	}
}
