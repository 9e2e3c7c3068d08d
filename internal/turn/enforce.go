// SPDX-License-Identifier: MIT

package turn

import (
	"fmt"

	"github.com/stitech/convogate/internal/stage"
)

// Decision is the enforcer's verdict for one inbound event.
type Decision struct {
	Accepted bool
	// Violations found at enforcement time; empty when accepted.
	Violations []Violation
	// CorrectedButtons is the stage's own default button list, re-shown on
	// reject. It is always empty for stages with an empty allowed-token set.
	CorrectedButtons []stage.Button
}

// Enforce validates an event against the contract of the session's current
// stage. It runs strictly before any handler executes and has no side
// effects. On reject it computes corrected buttons from the stage's own
// defaults, never from any other stage.
func Enforce(contract stage.Contract, ev UserEvent) Decision {
	if !contract.AllowsKind(stage.InputKind(ev.Kind)) {
		return reject(contract, Violation{
			Code:     VWrongInputKind,
			Severity: SeverityWarn,
			Detail:   fmt.Sprintf("stage %s does not accept %s input", contract.Stage, ev.Kind),
		})
	}
	if ev.Kind == KindButton && !contract.AllowsToken(ev.ButtonToken) {
		return reject(contract, Violation{
			Code:     VUnknownToken,
			Severity: SeverityWarn,
			Detail:   fmt.Sprintf("token %s not allowed in stage %s", ev.ButtonToken, contract.Stage),
		})
	}
	return Decision{Accepted: true}
}

func reject(contract stage.Contract, v Violation) Decision {
	// Defaults are already bounded by the contract; SanitizeOutgoingButtons
	// still runs on them before transmission.
	corrected := make([]stage.Button, len(contract.Defaults))
	copy(corrected, contract.Defaults)
	return Decision{
		Accepted:         false,
		Violations:       []Violation{v},
		CorrectedButtons: corrected,
	}
}

// SanitizeOutgoingButtons is the second, independent check applied to
// whatever a handler proposes to show: it drops tokens outside the allowed
// set, truncates to MaxButtons, and forces an empty list whenever the
// contract's allowed-token set is empty, regardless of the proposal.
// The returned violations describe every correction made.
func SanitizeOutgoingButtons(contract stage.Contract, proposed []stage.Button) ([]stage.Button, []Violation) {
	if len(proposed) == 0 {
		return nil, nil
	}
	if len(contract.Allowed) == 0 {
		return nil, []Violation{{
			Code:     VButtonsSuppressed,
			Severity: SeverityWarn,
			Detail:   fmt.Sprintf("stage %s is text-only; %d proposed buttons dropped", contract.Stage, len(proposed)),
		}}
	}

	var violations []Violation
	kept := make([]stage.Button, 0, len(proposed))
	for _, b := range proposed {
		if !contract.AllowsToken(b.Token) {
			violations = append(violations, Violation{
				Code:     VForeignToken,
				Severity: SeverityWarn,
				Detail:   fmt.Sprintf("token %s dropped in stage %s", b.Token, contract.Stage),
			})
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) > contract.MaxButtons {
		violations = append(violations, Violation{
			Code:     VButtonsTruncated,
			Severity: SeverityInfo,
			Detail:   fmt.Sprintf("%d buttons truncated to %d", len(kept), contract.MaxButtons),
		})
		kept = kept[:contract.MaxButtons]
	}
	for i := range kept {
		kept[i].Order = i
	}
	if len(kept) == 0 {
		return nil, violations
	}
	return kept, violations
}
