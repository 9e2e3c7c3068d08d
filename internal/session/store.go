// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that no session exists for the given key.
var ErrNotFound = errors.New("session: not found")

// Store is the durable session store contract.
//
// Get and Put carry a sliding TTL: every successful Put resets expiration.
// TryClaim is the only operation that must be atomic at the storage layer;
// everything else is additionally protected by per-session serialization in
// the engine.
type Store interface {
	// Get loads a session. Returns ErrNotFound for unseen keys. Backend
	// unavailability never surfaces to the caller; implementations degrade
	// to an in-process fallback instead.
	Get(ctx context.Context, key string) (Session, error)
	// Put stores a session and resets its sliding TTL.
	Put(ctx context.Context, key string, s Session, ttl time.Duration) error
	// TryClaim atomically claims (sessionKey, idempotencyKey) with a short
	// TTL. It returns true when the claim is fresh and the request should
	// proceed, false when an identical request was already accepted.
	// On backend unavailability implementations must return true: conversation
	// progress is favored over perfect deduplication.
	TryClaim(ctx context.Context, key, idempotencyKey string, ttl time.Duration) (bool, error)
	// Close releases backend resources.
	Close() error
}
