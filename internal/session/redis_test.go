// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/turn"
)

// setupMiniRedis creates a test Redis server and a store wired to it.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &RedisStore{
		client:   client,
		fallback: NewMemoryStore(0),
		logger:   zerolog.Nop(),
	}
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func makeTurn(seq uint64) turn.TurnLog {
	return turn.NewTurnLog("sess", seq, stage.AskName, stage.AskNeed,
		turn.UserEvent{Kind: turn.KindText, Text: "Valeria"},
		turn.IntentSummary{}, "ok", "name_captured", nil, nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	_, store := setupMiniRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	sess := New("sess-1", time.Now().UTC())
	sess.Data["device"] = "notebook hp"
	sess.AppendTurn(makeTurn(1))
	require.NoError(t, store.Put(ctx, "sess-1", sess, time.Minute))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "notebook hp", got.Data["device"])
	assert.Equal(t, uint64(1), got.Sequence)
	require.Len(t, got.Transcript, 1)
	assert.Equal(t, stage.AskNeed, got.Transcript[0].StageAfter)
}

func TestRedisStoreSlidingTTL(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	sess := New("sess-ttl", time.Now())
	require.NoError(t, store.Put(ctx, "sess-ttl", sess, time.Minute))

	// Redis-side expiry removes the key.
	mr.FastForward(2 * time.Minute)

	// The fallback store also holds the session with its own TTL, so
	// continuity within this instance is preserved.
	_, err := store.Get(ctx, "sess-ttl")
	require.NoError(t, err)
}

func TestRedisStoreTryClaim(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	claimed, err := store.TryClaim(ctx, "sess-2", "idem-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.TryClaim(ctx, "sess-2", "idem-1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, claimed)

	// After the claim TTL the same pair may be claimed again.
	mr.FastForward(time.Minute)
	claimed, err = store.TryClaim(ctx, "sess-2", "idem-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisStoreDegradesToFallback(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	sess := New("sess-3", time.Now())
	sess.Data["name"] = "Roberto"
	require.NoError(t, store.Put(ctx, "sess-3", sess, time.Minute))

	// Kill the backend: reads and writes must keep working via the fallback.
	mr.Close()

	got, err := store.Get(ctx, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, "Roberto", got.Data["name"])

	got.Data["name"] = "Roberto G"
	require.NoError(t, store.Put(ctx, "sess-3", got, time.Minute))

	again, err := store.Get(ctx, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, "Roberto G", again.Data["name"])
}

func TestRedisStoreTryClaimFavorsProgressOnOutage(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	mr.Close()

	// With the backend down the fallback still deduplicates within this
	// instance; a fresh pair must be claimable.
	claimed, err := store.TryClaim(ctx, "sess-4", "idem-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.TryClaim(ctx, "sess-4", "idem-1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, claimed)
}
