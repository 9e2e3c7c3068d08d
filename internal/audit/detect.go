// SPDX-License-Identifier: MIT

package audit

import (
	"context"

	"github.com/stitech/convogate/internal/stage"
)

// Loop reports a session stuck on one stage across a full detection window.
type Loop struct {
	SessionKey string
	Stage      stage.Stage
	Turns      int
}

// Anomaly reports a backward stage transition outside the whitelist.
type Anomaly struct {
	SessionKey string
	Seq        int64
	From       stage.Stage
	To         stage.Stage
}

// DetectLoop examines the most recent windowSize entries for a session.
// A loop is reported when the window is full, every entry shares the same
// stage-before, and that stage is not terminal. The verdict is derived
// purely from the log, never from counters on the session.
func DetectLoop(ctx context.Context, sink Sink, sessionKey string, windowSize int) (*Loop, error) {
	entries, err := sink.Recent(ctx, sessionKey, windowSize)
	if err != nil {
		return nil, err
	}
	if len(entries) < windowSize {
		return nil, nil
	}
	first := entries[0].StageBefore
	for _, e := range entries[1:] {
		if e.StageBefore != first {
			return nil, nil
		}
	}
	if !stage.Known(first) || stage.IsTerminal(first) {
		return nil, nil
	}
	return &Loop{SessionKey: sessionKey, Stage: first, Turns: windowSize}, nil
}

// DetectBackwardTransition flags entries whose stage-after ranks strictly
// below stage-before, unless the pair is a whitelisted legal regression.
func DetectBackwardTransition(e FlowLogEntry) (Anomaly, bool) {
	if !stage.Known(e.StageBefore) || !stage.Known(e.StageAfter) {
		return Anomaly{}, false
	}
	if stage.Rank(e.StageAfter) >= stage.Rank(e.StageBefore) {
		return Anomaly{}, false
	}
	if stage.LegalRegression(e.StageBefore, e.StageAfter) {
		return Anomaly{}, false
	}
	return Anomaly{
		SessionKey: e.SessionKey,
		Seq:        e.Seq,
		From:       e.StageBefore,
		To:         e.StageAfter,
	}, true
}
