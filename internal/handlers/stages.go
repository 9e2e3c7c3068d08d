// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/intent"
	"github.com/stitech/convogate/internal/session"
	"github.com/stitech/convogate/internal/stage"
	"github.com/stitech/convogate/internal/turn"
)

var languageForToken = map[string]string{
	stage.BtnLangESAR: "es-AR",
	stage.BtnLangESES: "es-ES",
	stage.BtnLangEN:   "en",
}

func (r *Registry) handleAskLanguage(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	sess.Data[DataLanguage] = languageForToken[ev.ButtonToken]
	next, buttons := transition(sess, stage.AskName)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgAskName),
		ProposedButtons: buttons,
		Reason:          ReasonLanguageSelected,
	}, nil
}

func (r *Registry) handleAskName(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	name := strings.TrimSpace(ev.Text)
	sess.Data[DataName] = name
	next, buttons := transition(sess, stage.AskNeed)
	return Result{
		Session:         next,
		Reply:           r.catalog.Replyf(next.Data[DataLanguage], config.MsgAskNeed, name),
		ProposedButtons: buttons,
		Reason:          ReasonNameCaptured,
	}, nil
}

func (r *Registry) handleAskNeed(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	switch ev.ButtonToken {
	case stage.BtnHelp:
		sess.Data[DataNeed] = "help"
	case stage.BtnTask:
		sess.Data[DataNeed] = "task"
	}
	next, buttons := transition(sess, stage.AskProblem)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgAskProblem),
		ProposedButtons: buttons,
		Reason:          ReasonNeedSelected,
	}, nil
}

// handleAskProblem records the free-text problem description plus whatever
// the classifier extracted. A device mentioned inline skips the ASK_DEVICE
// question entirely.
func (r *Registry) handleAskProblem(_ context.Context, sess session.Session, ev turn.UserEvent, res intent.Result) (Result, error) {
	sess.Data[DataProblem] = strings.TrimSpace(ev.Text)
	sess.Data[DataIntent] = res.Intent

	if device, ok := res.Fields[intent.FieldDevice]; ok && device != "" {
		sess.Data[DataDevice] = device
		next, buttons := transition(sess, stage.RunTests)
		return Result{
			Session:         next,
			Reply:           r.reply(next, config.MsgProposeTests),
			ProposedButtons: buttons,
			Reason:          ReasonProblemCaptured,
		}, nil
	}

	next, buttons := transition(sess, stage.AskDevice)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgAskDevice),
		ProposedButtons: buttons,
		Reason:          ReasonProblemCaptured,
	}, nil
}

func (r *Registry) handleAskDevice(_ context.Context, sess session.Session, ev turn.UserEvent, res intent.Result) (Result, error) {
	device := strings.TrimSpace(ev.Text)
	if extracted, ok := res.Fields[intent.FieldDevice]; ok && extracted != "" {
		device = extracted
	}
	sess.Data[DataDevice] = device
	next, buttons := transition(sess, stage.RunTests)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgProposeTests),
		ProposedButtons: buttons,
		Reason:          ReasonDeviceCaptured,
	}, nil
}

func (r *Registry) handleRunTests(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	switch ev.ButtonToken {
	case stage.BtnSolved:
		next, buttons := transition(sess, stage.Done)
		return Result{
			Session:         next,
			Reply:           r.reply(next, config.MsgSolved),
			ProposedButtons: buttons,
			Reason:          ReasonSolved,
		}, nil
	case stage.BtnTestsDone:
		// Basic steps executed but the problem persists.
		next, buttons := transition(sess, stage.AdvancedTests)
		return Result{
			Session:         next,
			Reply:           r.reply(next, config.MsgAdvancedTests),
			ProposedButtons: buttons,
			Reason:          ReasonTestsPassed,
		}, nil
	default: // stage.BtnTestsFail
		next, buttons := transition(sess, stage.Escalate)
		return Result{
			Session:         next,
			Reply:           r.reply(next, config.MsgEscalate),
			ProposedButtons: buttons,
			Reason:          ReasonTestsFailed,
		}, nil
	}
}

func (r *Registry) handleAdvancedTests(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	if ev.ButtonToken == stage.BtnTestsDone {
		next, buttons := transition(sess, stage.Done)
		return Result{
			Session:         next,
			Reply:           r.reply(next, config.MsgSolved),
			ProposedButtons: buttons,
			Reason:          ReasonSolved,
		}, nil
	}
	next, buttons := transition(sess, stage.Escalate)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgEscalate),
		ProposedButtons: buttons,
		Reason:          ReasonTestsFailed,
	}, nil
}

func (r *Registry) handleEscalate(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	if ev.ButtonToken == stage.BtnNo {
		// Declining the ticket goes back to advanced tests; this is the
		// one whitelisted backward hop out of ESCALATE.
		next, buttons := transition(sess, stage.AdvancedTests)
		return Result{
			Session:         next,
			Reply:           r.reply(next, config.MsgAdvancedTests),
			ProposedButtons: buttons,
			Reason:          ReasonEscalationDeclined,
		}, nil
	}
	next, buttons := transition(sess, stage.AskEmail)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgAskEmail),
		ProposedButtons: buttons,
		Reason:          ReasonEscalationAccepted,
	}, nil
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (r *Registry) handleAskEmail(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	email := strings.TrimSpace(ev.Text)
	if !emailPattern.MatchString(email) {
		// Invalid input keeps the session in place; the stage re-asks.
		return Result{
			Session:         sess,
			Reply:           r.reply(sess, config.MsgEmailInvalid),
			ProposedButtons: stage.ContractFor(sess.Stage).Defaults,
			Reason:          ReasonEmailInvalid,
		}, nil
	}
	sess.Data[DataEmail] = email
	next, buttons := transition(sess, stage.AskPhone)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgAskPhone),
		ProposedButtons: buttons,
		Reason:          ReasonEmailCaptured,
	}, nil
}

func (r *Registry) handleAskPhone(_ context.Context, sess session.Session, ev turn.UserEvent, _ intent.Result) (Result, error) {
	sess.Data[DataPhone] = strings.TrimSpace(ev.Text)

	ticket := newTicket(sess)
	sess.Data[DataTicketID] = ticket.ID
	reply := r.reply(sess, config.MsgTicketSent)
	if r.supportWhatsApp != "" {
		link := whatsAppLink(r.supportWhatsApp, ticket.Summary())
		sess.Data[DataWhatsApp] = link
		reply += "\n" + link
	}

	next, buttons := transition(sess, stage.TicketSent)
	return Result{
		Session:         next,
		Reply:           reply,
		ProposedButtons: buttons,
		Reason:          ReasonTicketCreated,
	}, nil
}

// handleTerminalRestart serves both terminal stages: the only accepted
// token starts a fresh conversation in the same session, wiping the
// business bag but keeping the transcript.
func (r *Registry) handleTerminalRestart(_ context.Context, sess session.Session, _ turn.UserEvent, _ intent.Result) (Result, error) {
	lang := sess.Data[DataLanguage]
	sess.Data = map[string]string{}
	if lang != "" {
		sess.Data[DataLanguage] = lang
	}
	next, buttons := transition(sess, stage.AskLanguage)
	return Result{
		Session:         next,
		Reply:           r.reply(next, config.MsgRestarted),
		ProposedButtons: buttons,
		Reason:          ReasonRestarted,
	}, nil
}
