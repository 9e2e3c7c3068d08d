// SPDX-License-Identifier: MIT

package intent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/stitech/convogate/internal/metrics"
)

// timeoutAdapter bounds every Classify call with a hard deadline. A turn
// must always terminate with a result: on timeout or adapter error the
// documented fallback result is returned instead of an error.
type timeoutAdapter struct {
	inner   Adapter
	timeout time.Duration
	logger  zerolog.Logger
}

// WithTimeout wraps an adapter so that callers always receive a Result
// within the configured timeout, degraded if necessary.
func WithTimeout(inner Adapter, timeout time.Duration, logger zerolog.Logger) Adapter {
	return &timeoutAdapter{inner: inner, timeout: timeout, logger: logger}
}

type classifyOutcome struct {
	res Result
	err error
}

func (a *timeoutAdapter) Classify(ctx context.Context, text string, sctx SessionContext) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out := make(chan classifyOutcome, 1)
	go func() {
		res, err := a.inner.Classify(callCtx, text, sctx)
		out <- classifyOutcome{res: res, err: err}
	}()

	select {
	case o := <-out:
		if o.err != nil {
			a.logger.Warn().Err(o.err).Msg("intent adapter failed, using fallback classification")
			metrics.RecordIntentRequest("degraded")
			metrics.IncIntentDegraded()
			return Degrade(degradedReason(o.err), text, sctx), nil
		}
		metrics.RecordIntentRequest("ok")
		return o.res, nil
	case <-callCtx.Done():
		a.logger.Warn().
			Dur("timeout", a.timeout).
			Msg("intent adapter timed out, using fallback classification")
		metrics.RecordIntentRequest("timeout")
		metrics.IncIntentDegraded()
		return Degrade("timeout", text, sctx), nil
	}
}

func degradedReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "adapter_error"
}
