// SPDX-License-Identifier: MIT

package engine

import (
	"sync"
	"time"
)

// replayCache keeps the response of recently accepted turns keyed by
// (session key, idempotency key) so duplicate deliveries replay the exact
// same response instead of a generic acknowledgment. Entries live as long
// as the idempotency claim itself.
type replayCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]replayEntry
}

type replayEntry struct {
	resp    Response
	expires time.Time
}

func newReplayCache(ttl time.Duration) *replayCache {
	return &replayCache{
		ttl:     ttl,
		entries: make(map[string]replayEntry),
	}
}

func replayKey(sessionKey, idempotencyKey string) string {
	return sessionKey + "\x00" + idempotencyKey
}

func (c *replayCache) Put(sessionKey, idempotencyKey string, resp Response, now time.Time) {
	if idempotencyKey == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[replayKey(sessionKey, idempotencyKey)] = replayEntry{
		resp:    resp,
		expires: now.Add(c.ttl),
	}
}

func (c *replayCache) Get(sessionKey, idempotencyKey string, now time.Time) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[replayKey(sessionKey, idempotencyKey)]
	if !ok || now.After(e.expires) {
		return Response{}, false
	}
	return e.resp, true
}
