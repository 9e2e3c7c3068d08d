// SPDX-License-Identifier: MIT

// Package turn implements the per-request half of the governance core:
// event parsing, stage-contract enforcement, outgoing-button sanitization
// and the immutable TurnLog record.
package turn

import (
	"errors"
	"time"

	"github.com/stitech/convogate/internal/normalize"
)

// EventKind classifies an inbound user event.
type EventKind string

const (
	KindText   EventKind = "text"
	KindButton EventKind = "button"
)

// ErrMalformedEvent is returned when a request carries both free text and a
// button token, or neither. Such requests are rejected at parse time, never
// silently prioritized.
var ErrMalformedEvent = errors.New("turn: malformed event: exactly one of text or button required")

// RawRequest is the transport-level payload before classification.
type RawRequest struct {
	Text           string
	ButtonToken    string
	ButtonLabel    string
	IdempotencyKey string
}

// UserEvent is the parsed form of one inbound request.
type UserEvent struct {
	Kind           EventKind `json:"kind"`
	Text           string    `json:"text,omitempty"`
	NormalizedText string    `json:"normalizedText,omitempty"`
	ButtonToken    string    `json:"buttonToken,omitempty"`
	ButtonLabel    string    `json:"buttonLabel,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	ArrivedAt      time.Time `json:"arrivedAt"`
}

// ParseEvent classifies a raw request strictly from the presence of a button
// token versus free text.
func ParseEvent(req RawRequest, now time.Time) (UserEvent, error) {
	hasText := req.Text != ""
	hasButton := req.ButtonToken != ""
	if hasText == hasButton {
		return UserEvent{}, ErrMalformedEvent
	}

	ev := UserEvent{
		IdempotencyKey: req.IdempotencyKey,
		ArrivedAt:      now,
	}
	if hasButton {
		ev.Kind = KindButton
		ev.ButtonToken = normalize.Token(req.ButtonToken)
		ev.ButtonLabel = req.ButtonLabel
		// Tokens are matched uppercase throughout the contract table.
		ev.ButtonToken = upperToken(ev.ButtonToken)
		return ev, nil
	}
	ev.Kind = KindText
	ev.Text = req.Text
	ev.NormalizedText = normalize.Text(req.Text)
	return ev, nil
}

func upperToken(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
