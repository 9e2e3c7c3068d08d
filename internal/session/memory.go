// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"sync"
	"time"
)

// entry is a stored session with expiration time.
type entry struct {
	session    Session
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryStore is the in-process Store. It backs single-instance deployments
// and serves as the transparent fallback when the durable backend is down.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	claims  map[string]time.Time // claim key -> expiry
	janitor *janitor
}

// NewMemoryStore creates an in-memory store with automatic cleanup.
// The cleanupInterval determines how often expired entries are removed;
// zero disables the janitor.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		claims:  make(map[string]time.Time),
	}
	if cleanupInterval > 0 {
		s.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go s.janitor.run(s)
	}
	return s
}

// Get retrieves a session if present and unexpired.
func (s *MemoryStore) Get(_ context.Context, key string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, found := s.entries[key]
	if !found || e.isExpired(time.Now()) {
		return Session{}, ErrNotFound
	}
	return e.session.Clone(), nil
}

// Put stores a session and resets its sliding TTL.
func (s *MemoryStore) Put(_ context.Context, key string, sess Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{
		session:    sess.Clone(),
		expiration: time.Now().Add(ttl),
	}
	return nil
}

// TryClaim implements set-if-not-exists with expiration under the store lock.
func (s *MemoryStore) TryClaim(_ context.Context, key, idempotencyKey string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := claimKey(key, idempotencyKey)
	now := time.Now()
	if expiry, ok := s.claims[ck]; ok && now.Before(expiry) {
		return false, nil
	}
	s.claims[ck] = now.Add(ttl)
	return true, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	if s.janitor != nil {
		s.janitor.stop <- struct{}{}
	}
	return nil
}

// deleteExpired removes expired sessions and claims. Returns the number of
// sessions deleted.
func (s *MemoryStore) deleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for key, e := range s.entries {
		if e.isExpired(now) {
			delete(s.entries, key)
			count++
		}
	}
	for ck, expiry := range s.claims {
		if now.After(expiry) {
			delete(s.claims, ck)
		}
	}
	return count
}

func claimKey(sessionKey, idempotencyKey string) string {
	return sessionKey + "\x00" + idempotencyKey
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(s *MemoryStore) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-j.stop:
			return
		}
	}
}
