// SPDX-License-Identifier: MIT

package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/turn"
)

func TestCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	orig := New("s1", now)
	orig.Stage = stage.AskNeed
	orig.Data["name"] = "Marta"
	orig.AppendTurn(turn.TurnLog{TurnID: "t1", Sequence: 1, Timestamp: now})

	clone := orig.Clone()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone differs from original (-orig +clone):\n%s", diff)
	}

	clone.Data["name"] = "Ana"
	clone.Transcript[0].TurnID = "mutated"

	assert.Equal(t, "Marta", orig.Data["name"], "mutating the clone must not touch the original")
	assert.Equal(t, "t1", orig.Transcript[0].TurnID)
}

func TestAppendTurnBoundsTranscript(t *testing.T) {
	now := time.Now().UTC()
	sess := New("s1", now)

	for i := 1; i <= TranscriptCap+10; i++ {
		sess.AppendTurn(turn.TurnLog{
			TurnID:    fmt.Sprintf("t%d", i),
			Sequence:  uint64(i),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	assert.Len(t, sess.Transcript, TranscriptCap)
	assert.Equal(t, uint64(TranscriptCap+10), sess.Sequence, "sequence keeps counting past the cap")
	assert.Equal(t, "t11", sess.Transcript[0].TurnID, "oldest entries dropped first")
	assert.Equal(t, now.Add(time.Duration(TranscriptCap+10)*time.Second), sess.LastActivity)
}
