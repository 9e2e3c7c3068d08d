// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stitech/convogate/internal/metrics"
)

// Stream is the system-wide flow audit appender. Appends are asynchronous:
// the caller enqueues and returns, the background worker persists, mirrors
// to the structured log and runs the anomaly detectors. Per-session arrival
// order is preserved by the single worker; cross-session ordering is not
// guaranteed.
type Stream struct {
	sink   Sink
	logger zerolog.Logger

	queue  chan FlowLogEntry
	window int

	wg      sync.WaitGroup
	closing chan struct{}
	once    sync.Once
}

// StreamOptions configures a Stream.
type StreamOptions struct {
	// Buffer is the append queue size; a full queue drops entries rather
	// than blocking a turn.
	Buffer int
	// LoopWindow is the sliding window for loop detection, default 3.
	LoopWindow int
}

// NewStream starts the background worker over the given sink.
func NewStream(sink Sink, logger zerolog.Logger, opts StreamOptions) *Stream {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.LoopWindow <= 0 {
		opts.LoopWindow = 3
	}
	s := &Stream{
		sink:    sink,
		logger:  logger,
		queue:   make(chan FlowLogEntry, opts.Buffer),
		window:  opts.LoopWindow,
		closing: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Append enqueues an entry for the audit stream. It never blocks a turn:
// when the buffer is full the entry is dropped and counted.
func (s *Stream) Append(e FlowLogEntry) {
	select {
	case s.queue <- e:
	default:
		metrics.IncAuditDropped()
		s.logger.Warn().
			Str("session_key", e.SessionKey).
			Msg("flow audit buffer full, entry dropped")
	}
}

// Recent returns the newest n entries for a session, newest first.
func (s *Stream) Recent(ctx context.Context, sessionKey string, n int) ([]FlowLogEntry, error) {
	return s.sink.Recent(ctx, sessionKey, n)
}

// Scan streams the full audit log in sequence order.
func (s *Stream) Scan(ctx context.Context, fn func(FlowLogEntry) error) error {
	return s.sink.Scan(ctx, fn)
}

// WriteCSV streams the full audit log as CSV to w.
func (s *Stream) WriteCSV(ctx context.Context, w io.Writer) error {
	return WriteCSV(ctx, s.sink, w)
}

// ExportFile atomically writes the CSV export to path.
func (s *Stream) ExportFile(ctx context.Context, path string) error {
	return ExportFile(ctx, s.sink, path)
}

// Close drains the queue, stops the worker and closes the sink.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.closing)
		close(s.queue)
	})
	s.wg.Wait()
	return s.sink.Close()
}

func (s *Stream) run() {
	defer s.wg.Done()
	for e := range s.queue {
		s.persist(e)
	}
}

func (s *Stream) persist(e FlowLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seq, err := s.sink.Append(ctx, e)
	if err != nil {
		s.logger.Error().Err(err).
			Str("session_key", e.SessionKey).
			Msg("flow audit append failed")
		return
	}
	e.Seq = seq

	s.logger.Info().
		Int64("seq", e.Seq).
		Str("session_key", e.SessionKey).
		Str("stage_before", string(e.StageBefore)).
		Str("trigger", e.Trigger).
		Str("stage_after", string(e.StageAfter)).
		Str("action", e.Action).
		Int64("duration_ms", e.DurationMS).
		Msg("flow audit entry")

	s.inspect(ctx, e)
}

// inspect runs the anomaly detectors on the entry just appended. Findings
// are reported, never auto-corrected.
func (s *Stream) inspect(ctx context.Context, e FlowLogEntry) {
	if a, found := DetectBackwardTransition(e); found {
		metrics.IncBackwardTransition()
		s.logger.Warn().
			Str("session_key", a.SessionKey).
			Str("from", string(a.From)).
			Str("to", string(a.To)).
			Int64("seq", a.Seq).
			Msg("backward stage transition")
	}

	loop, err := DetectLoop(ctx, s.sink, e.SessionKey, s.window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("loop detection failed")
		return
	}
	if loop != nil {
		metrics.IncLoopDetected()
		s.logger.Warn().
			Str("session_key", loop.SessionKey).
			Str("stage", string(loop.Stage)).
			Int("turns", loop.Turns).
			Msg("conversation loop detected")
	}
}
