// SPDX-License-Identifier: MIT

// Package handlers contains one transition handler per stage. Handlers are
// pure with respect to the core: they receive a session copy plus the typed
// intent result, and return a new session value with reply, proposed
// buttons and a transition reason. They never touch storage or logging.
package handlers

import (
	"context"
	"fmt"

	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/intent"
	"github.com/stitech/convogate/internal/session"
	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/turn"
)

// Business-data bag keys. The core treats the bag as opaque; these keys are
// owned by the handlers.
const (
	DataLanguage = "language"
	DataName     = "name"
	DataNeed     = "need"
	DataProblem  = "problem"
	DataIntent   = "intent"
	DataDevice   = "device"
	DataEmail    = "email"
	DataPhone    = "phone"
	DataTicketID = "ticketId"
	DataWhatsApp = "whatsappLink"
)

// Transition reason codes recorded on turn logs.
const (
	ReasonLanguageSelected   = "language_selected"
	ReasonNameCaptured       = "name_captured"
	ReasonNeedSelected       = "need_selected"
	ReasonProblemCaptured    = "problem_captured"
	ReasonDeviceCaptured     = "device_captured"
	ReasonTestsPassed        = "tests_passed"
	ReasonTestsFailed        = "tests_failed"
	ReasonSolved             = "solved"
	ReasonEscalationAccepted = "escalation_accepted"
	ReasonEscalationDeclined = "escalation_declined"
	ReasonEmailCaptured      = "email_captured"
	ReasonEmailInvalid       = "email_invalid"
	ReasonTicketCreated      = "ticket_created"
	ReasonRestarted          = "restarted"
)

// Result is what a handler returns for one accepted turn.
type Result struct {
	// Session is the new session value; the engine owns the commit.
	Session session.Session
	Reply   string
	// ProposedButtons pass through SanitizeOutgoingButtons before
	// transmission; handlers usually propose the next stage's defaults.
	ProposedButtons []stage.Button
	Reason          string
}

// Handler processes one accepted event for one stage.
type Handler interface {
	Handle(ctx context.Context, sess session.Session, ev turn.UserEvent, res intent.Result) (Result, error)
}

// Func adapts a function to the Handler interface.
type Func func(ctx context.Context, sess session.Session, ev turn.UserEvent, res intent.Result) (Result, error)

// Handle implements Handler.
func (f Func) Handle(ctx context.Context, sess session.Session, ev turn.UserEvent, res intent.Result) (Result, error) {
	return f(ctx, sess, ev, res)
}

// Registry maps each stage to its handler. It is built once at startup and
// never mutated afterwards; the contract table stays data, this stays code.
type Registry struct {
	catalog         *config.Catalog
	supportWhatsApp string
	handlers        map[stage.Stage]Handler
}

// NewRegistry resolves the full handler map. It fails fast when any stage
// in the contract table is missing a handler.
func NewRegistry(catalog *config.Catalog, supportWhatsApp string) (*Registry, error) {
	r := &Registry{catalog: catalog, supportWhatsApp: supportWhatsApp}
	r.handlers = map[stage.Stage]Handler{
		stage.AskLanguage:   Func(r.handleAskLanguage),
		stage.AskName:       Func(r.handleAskName),
		stage.AskNeed:       Func(r.handleAskNeed),
		stage.AskProblem:    Func(r.handleAskProblem),
		stage.AskDevice:     Func(r.handleAskDevice),
		stage.RunTests:      Func(r.handleRunTests),
		stage.AdvancedTests: Func(r.handleAdvancedTests),
		stage.Escalate:      Func(r.handleEscalate),
		stage.AskEmail:      Func(r.handleAskEmail),
		stage.AskPhone:      Func(r.handleAskPhone),
		stage.TicketSent:    Func(r.handleTerminalRestart),
		stage.Done:          Func(r.handleTerminalRestart),
	}
	for _, s := range stage.All() {
		if _, ok := r.handlers[s]; !ok {
			return nil, fmt.Errorf("handlers: no handler registered for stage %s", s)
		}
	}
	return r, nil
}

// Resolve returns the handler for a stage. The registry covers every known
// stage by construction.
func (r *Registry) Resolve(s stage.Stage) Handler {
	return r.handlers[s]
}

// reply shortcut bound to the session language.
func (r *Registry) reply(sess session.Session, key string) string {
	return r.catalog.Reply(sess.Data[DataLanguage], key)
}

// transition moves the session to the next stage and proposes that stage's
// default buttons.
func transition(sess session.Session, to stage.Stage) (session.Session, []stage.Button) {
	sess.Stage = to
	return sess, stage.ContractFor(to).Defaults
}
