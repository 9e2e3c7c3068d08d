// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"sync"
)

// Sink is the append-only storage behind the flow audit stream. Append
// assigns and returns the entry's global sequence number.
type Sink interface {
	Append(ctx context.Context, e FlowLogEntry) (int64, error)
	// Recent returns the most recent n entries for a session, newest first.
	Recent(ctx context.Context, sessionKey string, n int) ([]FlowLogEntry, error)
	// Scan streams every entry in sequence order.
	Scan(ctx context.Context, fn func(FlowLogEntry) error) error
	Close() error
}

// MemorySink keeps the audit log in process memory. It backs tests and
// deployments that run without a database file.
type MemorySink struct {
	mu      sync.RWMutex
	entries []FlowLogEntry
	nextSeq int64
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{nextSeq: 1}
}

// Append stores the entry and assigns its sequence number.
func (s *MemorySink) Append(_ context.Context, e FlowLogEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Seq = s.nextSeq
	s.nextSeq++
	s.entries = append(s.entries, e)
	return e.Seq, nil
}

// Recent returns the newest n entries for a session, newest first.
func (s *MemorySink) Recent(_ context.Context, sessionKey string, n int) ([]FlowLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FlowLogEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		if s.entries[i].SessionKey == sessionKey {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// Scan visits every entry in sequence order.
func (s *MemorySink) Scan(_ context.Context, fn func(FlowLogEntry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }
