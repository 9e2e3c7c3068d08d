// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitech/convogate/internal/stage"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	_, err := store.Get(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	sess := New("sess-1", time.Now())
	sess.Data["name"] = "Valeria"
	require.NoError(t, store.Put(ctx, "sess-1", sess, time.Minute))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, stage.Initial, got.Stage)
	assert.Equal(t, "Valeria", got.Data["name"])
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-2", New("sess-2", time.Now()), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err := store.Get(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	sess := New("sess-3", time.Now())
	require.NoError(t, store.Put(ctx, "sess-3", sess, time.Minute))

	got, err := store.Get(ctx, "sess-3")
	require.NoError(t, err)
	got.Data["mutated"] = "yes"

	again, err := store.Get(ctx, "sess-3")
	require.NoError(t, err)
	assert.NotContains(t, again.Data, "mutated")
}

func TestMemoryStoreTryClaim(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	claimed, err := store.TryClaim(ctx, "sess-4", "idem-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.TryClaim(ctx, "sess-4", "idem-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	// Different idempotency key is a fresh claim.
	claimed, err = store.TryClaim(ctx, "sess-4", "idem-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Same key for a different session does not collide.
	claimed, err = store.TryClaim(ctx, "sess-5", "idem-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryStoreClaimExpiry(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	claimed, err := store.TryClaim(ctx, "sess-6", "idem-1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, claimed)

	time.Sleep(25 * time.Millisecond)

	claimed, err = store.TryClaim(ctx, "sess-6", "idem-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "expired claim should be reclaimable")
}

func TestMemoryStoreJanitorSweep(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", New("a", time.Now()), time.Nanosecond))
	require.NoError(t, store.Put(ctx, "b", New("b", time.Now()), time.Hour))
	time.Sleep(time.Millisecond)

	deleted := store.deleteExpired()
	assert.Equal(t, 1, deleted)
}
