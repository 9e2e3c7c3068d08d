// SPDX-License-Identifier: MIT

// Package audit implements the system-wide flow audit stream: a write-once,
// append-only record of every turn across all sessions, plus the offline
// loop and anomaly detectors that consume it.
package audit

import (
	"time"
	"unicode/utf8"

	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/turn"
)

// truncateLen bounds free-text columns in the analytics projection.
const truncateLen = 120

// FlowLogEntry is the flattened, analytics-oriented projection of a TurnLog.
type FlowLogEntry struct {
	Seq         int64       `json:"seq"`
	Timestamp   time.Time   `json:"timestamp"`
	SessionKey  string      `json:"sessionKey"`
	StageBefore stage.Stage `json:"stageBefore"`
	Input       string      `json:"input"`
	Trigger     string      `json:"trigger"`
	Reply       string      `json:"reply"`
	StageAfter  stage.Stage `json:"stageAfter"`
	Action      string      `json:"action"`
	DurationMS  int64       `json:"durationMs"`
}

// Project flattens a TurnLog into its audit projection. Seq is assigned by
// the stream on append, not here.
func Project(tl turn.TurnLog) FlowLogEntry {
	return FlowLogEntry{
		Timestamp:   tl.Timestamp,
		SessionKey:  tl.SessionKey,
		StageBefore: tl.StageBefore,
		Input:       truncate(inputOf(tl.Event)),
		Trigger:     triggerOf(tl),
		Reply:       truncate(tl.Reply),
		StageAfter:  tl.StageAfter,
		Action:      tl.Reason,
		DurationMS:  tl.DurationMS,
	}
}

func inputOf(ev turn.UserEvent) string {
	if ev.Kind == turn.KindButton {
		return "[" + ev.ButtonToken + "]"
	}
	return ev.Text
}

// triggerOf reports what drove the transition: the pressed button token or
// the detected intent.
func triggerOf(tl turn.TurnLog) string {
	if tl.Event.Kind == turn.KindButton {
		return tl.Event.ButtonToken
	}
	if tl.Intent.Intent != "" {
		return tl.Intent.Intent
	}
	return "text"
}

// truncate caps a projected field, cutting on a rune boundary so Spanish
// input never yields invalid UTF-8 in the sink or the CSV export.
func truncate(s string) string {
	if len(s) <= truncateLen {
		return s
	}
	cut := truncateLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
