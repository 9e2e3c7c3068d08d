// SPDX-License-Identifier: MIT

// Package engine orchestrates one conversation turn end to end: claim,
// load, enforce, classify, handle, sanitize, commit, audit. It is the only
// writer of session state; everything below it is side-effect free.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stitech/convogate/internal/audit"
	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/handlers"
	"github.com/stitech/convogate/internal/intent"
	"github.com/stitech/convogate/internal/log"
	"github.com/stitech/convogate/internal/metrics"
	"github.com/stitech/convogate/internal/session"
	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/telemetry"
	"github.com/stitech/convogate/internal/turn"
)

const tracerName = "convogate/engine"

// ViewModel tells the client how to render the current stage.
type ViewModel struct {
	StageType    string `json:"stageType"` // text|button|either
	AllowText    bool   `json:"allowText"`
	AllowButtons bool   `json:"allowButtons"`
	MaxButtons   int    `json:"maxButtons"`
	Terminal     bool   `json:"terminal"`
}

// Debug carries per-turn diagnostics; populated only when requested.
type Debug struct {
	TurnID     string             `json:"turnId,omitempty"`
	Sequence   uint64             `json:"sequence,omitempty"`
	Intent     turn.IntentSummary `json:"intent,omitempty"`
	Violations []turn.Violation   `json:"violations,omitempty"`
	DurationMS int64              `json:"durationMs,omitempty"`
}

// Response is the engine's answer to one request.
type Response struct {
	// OK reports whether the event was accepted and handled. Contract
	// rejections and handler faults answer with OK false over HTTP 200;
	// transport-level failures are plain errors.
	OK        bool           `json:"ok"`
	SessionID string         `json:"sessionId"`
	Stage     stage.Stage    `json:"stage"`
	Reply     string         `json:"reply"`
	Buttons   []stage.Button `json:"buttons"`
	ViewModel ViewModel      `json:"viewModel"`
	Duplicate bool           `json:"duplicate,omitempty"`
	Debug     *Debug         `json:"debug,omitempty"`
}

// Resolver yields the handler for a stage. *handlers.Registry is the
// production implementation.
type Resolver interface {
	Resolve(s stage.Stage) handlers.Handler
}

// Options wires an Engine.
type Options struct {
	Store      session.Store
	Registry   Resolver
	Classifier intent.Adapter
	Audit      *audit.Stream
	Catalog    *config.Catalog
	Logger     zerolog.Logger
	SessionTTL time.Duration
	ClaimTTL   time.Duration
	// IncludeDebug attaches the Debug block to every response.
	IncludeDebug bool
}

// Engine is the single turn coordinator.
type Engine struct {
	store      session.Store
	registry   Resolver
	classifier intent.Adapter
	audit      *audit.Stream
	catalog    *config.Catalog
	logger     zerolog.Logger
	sessionTTL time.Duration
	claimTTL   time.Duration
	debug      bool

	locks   *keyedMutex
	replays *replayCache
}

// New builds an Engine from options. Store, Registry, Classifier, Audit and
// Catalog are required.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Registry == nil || opts.Classifier == nil ||
		opts.Audit == nil || opts.Catalog == nil {
		return nil, errors.New("engine: store, registry, classifier, audit and catalog are required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 30 * time.Second
	}
	return &Engine{
		store:      opts.Store,
		registry:   opts.Registry,
		classifier: opts.Classifier,
		audit:      opts.Audit,
		catalog:    opts.Catalog,
		logger:     opts.Logger,
		sessionTTL: opts.SessionTTL,
		claimTTL:   opts.ClaimTTL,
		debug:      opts.IncludeDebug,
		locks:      newKeyedMutex(),
		replays:    newReplayCache(opts.ClaimTTL),
	}, nil
}

// StartGreeting opens (or resumes) a conversation. A blank session ID mints
// a fresh one; an existing ID re-presents the session's current stage so a
// reconnecting client can pick up where it left off.
func (e *Engine) StartGreeting(ctx context.Context, sessionID string) (Response, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	now := time.Now().UTC()
	sess, err := e.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		sess = session.New(sessionID, now)
		metrics.IncSessionStarted()
	} else if err != nil {
		return Response{}, fmt.Errorf("engine: load session: %w", err)
	}

	if err := e.store.Put(ctx, sessionID, sess, e.sessionTTL); err != nil {
		return Response{}, fmt.Errorf("engine: save session: %w", err)
	}

	contract := stage.ContractFor(sess.Stage)
	buttons, _ := turn.SanitizeOutgoingButtons(contract, contract.Defaults)
	return Response{
		OK:        true,
		SessionID: sessionID,
		Stage:     sess.Stage,
		Reply:     e.catalog.Reply(sess.Data[handlers.DataLanguage], config.MsgGreeting),
		Buttons:   buttons,
		ViewModel: viewModelFor(contract),
	}, nil
}

// ProcessTurn runs the full pipeline for one inbound request.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID string, raw turn.RawRequest) (Response, error) {
	if sessionID == "" {
		return Response{}, errors.New("engine: session id required")
	}
	started := time.Now()

	ev, err := turn.ParseEvent(raw, started.UTC())
	if err != nil {
		return Response{}, err
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "ProcessTurn")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.SessionIDKey, sessionID),
		attribute.String(telemetry.EventKindKey, string(ev.Kind)))

	ctx = log.ContextWithSessionID(ctx, sessionID)
	logger := log.WithContext(ctx, e.logger)

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	// Idempotency barrier. A lost claim means this exact request was already
	// accepted; replay its response when we still have it.
	if ev.IdempotencyKey != "" {
		fresh, err := e.store.TryClaim(ctx, sessionID, ev.IdempotencyKey, e.claimTTL)
		if err != nil {
			return Response{}, fmt.Errorf("engine: claim: %w", err)
		}
		if !fresh {
			return e.duplicateResponse(ctx, sessionID, ev, logger)
		}
	}

	sess, created, err := e.loadOrCreate(ctx, sessionID)
	if err != nil {
		return Response{}, err
	}
	if created {
		metrics.IncSessionStarted()
	}

	contract := stage.ContractFor(sess.Stage)
	decision := turn.Enforce(contract, ev)
	if !decision.Accepted {
		return e.rejectTurn(ctx, sess, contract, ev, decision, started)
	}

	res := e.classify(ctx, sess, ev)
	if ev.Kind == turn.KindText {
		span.SetAttributes(telemetry.IntentAttributes(res.Intent, res.Degraded)...)
	}

	outcome, handleErr := e.runHandler(ctx, sess, ev, res)
	if handleErr != nil {
		span.SetAttributes(telemetry.ErrorAttributes("handler_fault")...)
		return e.faultTurn(ctx, sess, contract, ev, res, handleErr, started, logger)
	}

	afterContract := stage.ContractFor(outcome.Session.Stage)
	buttons, sanitizeViolations := turn.SanitizeOutgoingButtons(afterContract, outcome.ProposedButtons)

	violations := sanitizeViolations
	if res.Degraded {
		violations = append(violations, turn.Violation{
			Code:     turn.VAdapterDegraded,
			Severity: turn.SeverityInfo,
			Detail:   res.DegradedReason,
		})
	}
	if e.storeDegraded() {
		violations = append(violations, turn.Violation{
			Code:     turn.VStorageDegraded,
			Severity: turn.SeverityInfo,
			Detail:   "served by in-process fallback store",
		})
	}

	tl := turn.NewTurnLog(sessionID, sess.Sequence+1, sess.Stage, outcome.Session.Stage,
		ev, summarize(res), outcome.Reply, outcome.Reason, buttons, violations)
	tl.DurationMS = time.Since(started).Milliseconds()

	committed := outcome.Session
	committed.AppendTurn(tl)
	if err := e.store.Put(ctx, sessionID, committed, e.sessionTTL); err != nil {
		return Response{}, fmt.Errorf("engine: save session: %w", err)
	}

	e.finishTurn(tl, "accepted")
	span.SetAttributes(telemetry.TurnAttributes(sessionID,
		string(tl.StageBefore), string(tl.StageAfter), "accepted", tl.Sequence)...)

	resp := Response{
		OK:        true,
		SessionID: sessionID,
		Stage:     committed.Stage,
		Reply:     outcome.Reply,
		Buttons:   buttons,
		ViewModel: viewModelFor(afterContract),
	}
	if e.debug {
		resp.Debug = &Debug{
			TurnID:     tl.TurnID,
			Sequence:   tl.Sequence,
			Intent:     tl.Intent,
			Violations: tl.Violations,
			DurationMS: tl.DurationMS,
		}
	}
	e.replays.Put(sessionID, ev.IdempotencyKey, resp, time.Now())
	return resp, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, sessionID string) (session.Session, bool, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(sessionID, time.Now().UTC()), true, nil
	}
	if err != nil {
		return session.Session{}, false, fmt.Errorf("engine: load session: %w", err)
	}
	return sess, false, nil
}

// classify runs the intent adapter for text events; button presses carry
// their meaning in the token and skip classification entirely.
func (e *Engine) classify(ctx context.Context, sess session.Session, ev turn.UserEvent) intent.Result {
	if ev.Kind != turn.KindText {
		return intent.Result{}
	}
	res, err := e.classifier.Classify(ctx, ev.NormalizedText, intent.SessionContext{
		Stage:    string(sess.Stage),
		Language: sess.Data[handlers.DataLanguage],
		Data:     sess.Data,
	})
	if err != nil {
		// Adapters wrapped in WithTimeout never error; a bare adapter that
		// does is treated as degraded.
		return intent.Degrade("adapter_error", ev.NormalizedText, intent.SessionContext{
			Stage: string(sess.Stage),
		})
	}
	return res
}

// runHandler invokes the stage handler on a clone of the session, turning
// panics into errors so a buggy handler can never corrupt stored state.
func (e *Engine) runHandler(ctx context.Context, sess session.Session, ev turn.UserEvent, res intent.Result) (outcome handlers.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: handler panic in stage %s: %v", sess.Stage, r)
		}
	}()
	return e.registry.Resolve(sess.Stage).Handle(ctx, sess.Clone(), ev, res)
}

// rejectTurn records a contract rejection: the session stays in place, the
// stage's own defaults are re-shown and the violation lands on the log.
func (e *Engine) rejectTurn(ctx context.Context, sess session.Session, contract stage.Contract,
	ev turn.UserEvent, decision turn.Decision, started time.Time) (Response, error) {

	replyKey := config.MsgRejectToken
	if len(decision.Violations) > 0 && decision.Violations[0].Code == turn.VWrongInputKind {
		replyKey = config.MsgRejectKind
	}
	reply := e.catalog.Reply(sess.Data[handlers.DataLanguage], replyKey)

	buttons, _ := turn.SanitizeOutgoingButtons(contract, decision.CorrectedButtons)
	tl := turn.NewTurnLog(sess.Key, sess.Sequence+1, sess.Stage, sess.Stage,
		ev, turn.IntentSummary{}, reply, "rejected", buttons, decision.Violations)
	tl.DurationMS = time.Since(started).Milliseconds()

	committed := sess.Clone()
	committed.AppendTurn(tl)
	if err := e.store.Put(ctx, sess.Key, committed, e.sessionTTL); err != nil {
		return Response{}, fmt.Errorf("engine: save session: %w", err)
	}

	e.finishTurn(tl, "rejected")

	resp := Response{
		OK:        false,
		SessionID: sess.Key,
		Stage:     sess.Stage,
		Reply:     reply,
		Buttons:   buttons,
		ViewModel: viewModelFor(contract),
	}
	if e.debug {
		resp.Debug = &Debug{
			TurnID:     tl.TurnID,
			Sequence:   tl.Sequence,
			Violations: tl.Violations,
			DurationMS: tl.DurationMS,
		}
	}
	e.replays.Put(sess.Key, ev.IdempotencyKey, resp, time.Now())
	return resp, nil
}

// faultTurn answers a handler failure. The stored session is left exactly
// as it was; only the audit stream learns about the fault.
func (e *Engine) faultTurn(_ context.Context, sess session.Session, contract stage.Contract,
	ev turn.UserEvent, res intent.Result, handleErr error, started time.Time, logger zerolog.Logger) (Response, error) {

	logger.Error().Err(handleErr).
		Str("stage", string(sess.Stage)).
		Msg("stage handler fault, turn aborted")

	reply := e.catalog.Reply(sess.Data[handlers.DataLanguage], config.MsgDegradedReply)
	buttons, _ := turn.SanitizeOutgoingButtons(contract, contract.Defaults)

	tl := turn.NewTurnLog(sess.Key, sess.Sequence+1, sess.Stage, sess.Stage,
		ev, summarize(res), reply, "handler_fault", buttons, []turn.Violation{{
			Code:     turn.VHandlerFault,
			Severity: turn.SeverityFatal,
			Detail:   handleErr.Error(),
		}})
	tl.DurationMS = time.Since(started).Milliseconds()

	e.finishTurn(tl, "fault")

	resp := Response{
		OK:        false,
		SessionID: sess.Key,
		Stage:     sess.Stage,
		Reply:     reply,
		Buttons:   buttons,
		ViewModel: viewModelFor(contract),
	}
	if e.debug {
		resp.Debug = &Debug{
			TurnID:     tl.TurnID,
			Sequence:   tl.Sequence,
			Violations: tl.Violations,
			DurationMS: tl.DurationMS,
		}
	}
	// The claim was consumed before the handler ran; cache the fault reply
	// so a retry with the same key replays it instead of a bare ack.
	e.replays.Put(sess.Key, ev.IdempotencyKey, resp, time.Now())
	return resp, nil
}

// duplicateResponse answers a request whose idempotency claim was already
// taken: replay the original response when cached, otherwise acknowledge.
func (e *Engine) duplicateResponse(ctx context.Context, sessionID string, ev turn.UserEvent, logger zerolog.Logger) (Response, error) {
	metrics.IncDedupHit()

	if resp, ok := e.replays.Get(sessionID, ev.IdempotencyKey, time.Now()); ok {
		resp.Duplicate = true
		metrics.RecordTurn(string(resp.Stage), "duplicate")
		logger.Debug().Str("idempotency_key", ev.IdempotencyKey).Msg("duplicate request, response replayed")
		return resp, nil
	}

	sess, _, err := e.loadOrCreate(ctx, sessionID)
	if err != nil {
		return Response{}, err
	}
	contract := stage.ContractFor(sess.Stage)
	buttons, _ := turn.SanitizeOutgoingButtons(contract, contract.Defaults)
	metrics.RecordTurn(string(sess.Stage), "duplicate")
	logger.Debug().Str("idempotency_key", ev.IdempotencyKey).Msg("duplicate request, acknowledged")
	return Response{
		OK:        true,
		SessionID: sessionID,
		Stage:     sess.Stage,
		Reply:     e.catalog.Reply(sess.Data[handlers.DataLanguage], config.MsgDuplicateAck),
		Buttons:   buttons,
		ViewModel: viewModelFor(contract),
		Duplicate: true,
	}, nil
}

// finishTurn records metrics and ships the audit projection for one turn.
func (e *Engine) finishTurn(tl turn.TurnLog, outcome string) {
	metrics.RecordTurn(string(tl.StageBefore), outcome)
	metrics.ObserveTurnDuration(float64(tl.DurationMS) / 1000)
	for _, v := range tl.Violations {
		metrics.IncContractViolation(string(tl.StageBefore), string(v.Code))
	}
	e.audit.Append(audit.Project(tl))
}

func (e *Engine) storeDegraded() bool {
	if d, ok := e.store.(interface{ Degraded() bool }); ok {
		return d.Degraded()
	}
	return false
}

func summarize(res intent.Result) turn.IntentSummary {
	return turn.IntentSummary{
		Intent:     res.Intent,
		Confidence: res.Confidence,
		Degraded:   res.Degraded,
		Reason:     res.DegradedReason,
	}
}

func viewModelFor(c stage.Contract) ViewModel {
	return ViewModel{
		StageType:    string(c.Input),
		AllowText:    c.AllowsKind(stage.InputText),
		AllowButtons: c.AllowsKind(stage.InputButton),
		MaxButtons:   c.MaxButtons,
		Terminal:     c.Terminal,
	}
}
