// SPDX-License-Identifier: MIT

// Package session holds the per-user conversation state and its durable,
// TTL-bound storage.
package session

import (
	"time"

	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/turn"
)

// TranscriptCap bounds the per-session turn history; oldest entries are
// dropped past the cap.
const TranscriptCap = 50

// Session is the long-lived conversation state for one session key.
// Handlers never mutate a stored session in place; they receive a copy and
// return a new value, and the engine owns the single commit point.
type Session struct {
	Key          string            `json:"key"`
	Stage        stage.Stage       `json:"stage"`
	Data         map[string]string `json:"data,omitempty"` // business-data bag, opaque to the core
	Transcript   []turn.TurnLog    `json:"transcript,omitempty"`
	Sequence     uint64            `json:"sequence"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
}

// New creates a session at the initial stage.
func New(key string, now time.Time) Session {
	return Session{
		Key:          key,
		Stage:        stage.Initial,
		Data:         map[string]string{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Clone returns a deep copy. Handlers operate on clones so a failed turn
// leaves the stored session untouched.
func (s Session) Clone() Session {
	out := s
	out.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		out.Data[k] = v
	}
	out.Transcript = make([]turn.TurnLog, len(s.Transcript))
	copy(out.Transcript, s.Transcript)
	return out
}

// AppendTurn appends a turn log to the bounded transcript and advances the
// sequence counter and activity timestamp.
func (s *Session) AppendTurn(tl turn.TurnLog) {
	s.Transcript = append(s.Transcript, tl)
	if len(s.Transcript) > TranscriptCap {
		s.Transcript = s.Transcript[len(s.Transcript)-TranscriptCap:]
	}
	s.Sequence = tl.Sequence
	s.LastActivity = tl.Timestamp
}
