// SPDX-License-Identifier: MIT

package turn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitech/convogate/internal/stage"
)

func textEvent(t *testing.T, text string) UserEvent {
	t.Helper()
	ev, err := ParseEvent(RawRequest{Text: text}, time.Now())
	require.NoError(t, err)
	return ev
}

func buttonEvent(t *testing.T, token string) UserEvent {
	t.Helper()
	ev, err := ParseEvent(RawRequest{ButtonToken: token}, time.Now())
	require.NoError(t, err)
	return ev
}

func TestParseEventClassification(t *testing.T) {
	now := time.Now()

	ev, err := ParseEvent(RawRequest{Text: "Mi Compú no enciende"}, now)
	require.NoError(t, err)
	assert.Equal(t, KindText, ev.Kind)
	assert.Equal(t, "mi compu no enciende", ev.NormalizedText)
	assert.Equal(t, now, ev.ArrivedAt)

	ev, err = ParseEvent(RawRequest{ButtonToken: "btn_yes", ButtonLabel: "Sí"}, now)
	require.NoError(t, err)
	assert.Equal(t, KindButton, ev.Kind)
	assert.Equal(t, "BTN_YES", ev.ButtonToken)
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent(RawRequest{Text: "hola", ButtonToken: "BTN_YES"}, time.Now())
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = ParseEvent(RawRequest{}, time.Now())
	require.ErrorIs(t, err, ErrMalformedEvent)
}

// Button event against a text-only stage with empty allowed set: reject with
// no buttons re-shown.
func TestEnforceButtonOnTextOnlyStage(t *testing.T) {
	contract := stage.ContractFor(stage.AskName)

	d := Enforce(contract, buttonEvent(t, stage.BtnSolved))

	require.False(t, d.Accepted)
	require.Len(t, d.Violations, 1)
	assert.Equal(t, VWrongInputKind, d.Violations[0].Code)
	assert.Empty(t, d.CorrectedButtons)
}

// Text against a button-only stage: reject, stage's own defaults re-shown.
func TestEnforceTextOnButtonOnlyStage(t *testing.T) {
	contract := stage.ContractFor(stage.AskLanguage)

	d := Enforce(contract, textEvent(t, "hola"))

	require.False(t, d.Accepted)
	require.Len(t, d.Violations, 1)
	assert.Equal(t, VWrongInputKind, d.Violations[0].Code)
	require.Len(t, d.CorrectedButtons, 3)
	tokens := []string{}
	for _, b := range d.CorrectedButtons {
		tokens = append(tokens, b.Token)
	}
	assert.Equal(t, []string{stage.BtnLangESAR, stage.BtnLangESES, stage.BtnLangEN}, tokens)
}

func TestEnforceUnknownToken(t *testing.T) {
	contract := stage.ContractFor(stage.Escalate)

	d := Enforce(contract, buttonEvent(t, stage.BtnTestsDone))

	require.False(t, d.Accepted)
	assert.Equal(t, VUnknownToken, d.Violations[0].Code)
	// Corrected buttons belong to ESCALATE, never a foreign stage.
	for _, b := range d.CorrectedButtons {
		assert.True(t, contract.AllowsToken(b.Token))
	}
}

func TestEnforceAccept(t *testing.T) {
	d := Enforce(stage.ContractFor(stage.Escalate), buttonEvent(t, stage.BtnYes))
	require.True(t, d.Accepted)
	assert.Empty(t, d.Violations)
	assert.Empty(t, d.CorrectedButtons)

	d = Enforce(stage.ContractFor(stage.AskName), textEvent(t, "Valeria"))
	require.True(t, d.Accepted)
}

func TestSanitizeForcesEmptyOnTextOnlyStage(t *testing.T) {
	contract := stage.ContractFor(stage.AskName)
	proposed := []stage.Button{{Token: stage.BtnYes, Label: "Sí"}}

	got, violations := SanitizeOutgoingButtons(contract, proposed)

	assert.Empty(t, got)
	require.Len(t, violations, 1)
	assert.Equal(t, VButtonsSuppressed, violations[0].Code)
}

func TestSanitizeDropsForeignTokens(t *testing.T) {
	contract := stage.ContractFor(stage.Escalate)
	proposed := []stage.Button{
		{Token: stage.BtnYes, Label: "Sí"},
		{Token: stage.BtnTestsDone, Label: "foreign"},
		{Token: stage.BtnNo, Label: "No"},
	}

	got, violations := SanitizeOutgoingButtons(contract, proposed)

	require.Len(t, got, 2)
	assert.Equal(t, stage.BtnYes, got[0].Token)
	assert.Equal(t, stage.BtnNo, got[1].Token)
	assert.Equal(t, 0, got[0].Order)
	assert.Equal(t, 1, got[1].Order)
	require.Len(t, violations, 1)
	assert.Equal(t, VForeignToken, violations[0].Code)
}

func TestSanitizeTruncatesToMaxButtons(t *testing.T) {
	contract := stage.ContractFor(stage.TicketSent) // MaxButtons == 1
	proposed := []stage.Button{
		{Token: stage.BtnRestart, Label: "a"},
		{Token: stage.BtnRestart, Label: "b"},
	}

	got, violations := SanitizeOutgoingButtons(contract, proposed)

	require.Len(t, got, 1)
	require.Len(t, violations, 1)
	assert.Equal(t, VButtonsTruncated, violations[0].Code)
}

func TestSanitizeEmptyProposalIsClean(t *testing.T) {
	got, violations := SanitizeOutgoingButtons(stage.ContractFor(stage.RunTests), nil)
	assert.Empty(t, got)
	assert.Empty(t, violations)
}
