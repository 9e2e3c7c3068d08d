// SPDX-License-Identifier: MIT

package turn

// ViolationCode identifies one class of contract violation observed during
// a turn. Violations are recorded on the TurnLog, never propagated as
// system errors.
type ViolationCode string

const (
	// VWrongInputKind: the event kind is not permitted in the current stage.
	VWrongInputKind ViolationCode = "wrong_input_kind"
	// VUnknownToken: a button event carried a token outside the allowed set.
	VUnknownToken ViolationCode = "unknown_token"
	// VButtonsSuppressed: a handler proposed buttons for a stage whose
	// allowed-token set is empty; the proposal was forced to an empty list.
	VButtonsSuppressed ViolationCode = "buttons_suppressed"
	// VButtonsTruncated: a handler proposed more buttons than MaxButtons.
	VButtonsTruncated ViolationCode = "buttons_truncated"
	// VForeignToken: a handler proposed a token not in the stage's allowed set.
	VForeignToken ViolationCode = "foreign_token"
	// VAdapterDegraded: the intent adapter timed out or errored and the
	// fallback classification path was used.
	VAdapterDegraded ViolationCode = "adapter_degraded"
	// VHandlerFault: the stage handler failed; the turn was aborted with the
	// session left unmodified.
	VHandlerFault ViolationCode = "handler_fault"
	// VStorageDegraded: the durable store was unreachable and the in-process
	// fallback served the turn.
	VStorageDegraded ViolationCode = "storage_degraded"
)

// Severity ranks a violation.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityFatal Severity = "fatal"
)

// Violation is one recorded contract violation.
type Violation struct {
	Code     ViolationCode `json:"code"`
	Severity Severity      `json:"severity"`
	Detail   string        `json:"detail,omitempty"`
}
