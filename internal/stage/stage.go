// SPDX-License-Identifier: MIT

// Package stage defines the conversation's finite state machine stages and
// the declarative contract governing legal inputs and outputs per stage.
// It is pure data plus pure lookups; nothing in here performs I/O.
package stage

// Stage is a named state in the conversation state machine.
type Stage string

const (
	AskLanguage   Stage = "ASK_LANGUAGE"
	AskName       Stage = "ASK_NAME"
	AskNeed       Stage = "ASK_NEED"
	AskProblem    Stage = "ASK_PROBLEM"
	AskDevice     Stage = "ASK_DEVICE"
	RunTests      Stage = "RUN_TESTS"
	AdvancedTests Stage = "ADVANCED_TESTS"
	Escalate      Stage = "ESCALATE"
	AskEmail      Stage = "ASK_EMAIL"
	AskPhone      Stage = "ASK_PHONE"
	TicketSent    Stage = "TICKET_SENT"
	Done          Stage = "DONE"
)

// Initial is the stage assigned to a freshly created session.
const Initial = AskLanguage

// InputKind describes which event kinds a stage accepts.
type InputKind string

const (
	InputText   InputKind = "text"
	InputButton InputKind = "button"
	InputEither InputKind = "either"
)

// Button token constants.
const (
	BtnLangESAR  = "BTN_LANG_ES_AR"
	BtnLangESES  = "BTN_LANG_ES_ES"
	BtnLangEN    = "BTN_LANG_EN"
	BtnHelp      = "BTN_HELP"
	BtnTask      = "BTN_TASK"
	BtnTestsDone = "BTN_TESTS_DONE"
	BtnTestsFail = "BTN_TESTS_FAIL"
	BtnSolved    = "BTN_SOLVED"
	BtnYes       = "BTN_YES"
	BtnNo        = "BTN_NO"
	BtnRestart   = "BTN_RESTART"
)

// Button is one selectable option presented to the user.
type Button struct {
	Token string `json:"token"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// Contract is the declarative rule set for one stage.
type Contract struct {
	Stage      Stage
	Input      InputKind
	Allowed    map[string]struct{} // allowed button tokens; empty means text only
	MaxButtons int
	Defaults   []Button // ordered default button list
	Terminal   bool
}

// AllowsKind reports whether the contract permits the given input kind.
func (c Contract) AllowsKind(kind InputKind) bool {
	return c.Input == InputEither || c.Input == kind
}

// AllowsToken reports whether the token is in the allowed set.
func (c Contract) AllowsToken(token string) bool {
	_, ok := c.Allowed[token]
	return ok
}

func buttons(bs ...Button) []Button {
	for i := range bs {
		bs[i].Order = i
	}
	return bs
}

func tokenSet(bs []Button) map[string]struct{} {
	set := make(map[string]struct{}, len(bs))
	for _, b := range bs {
		set[b.Token] = struct{}{}
	}
	return set
}

func buttonContract(s Stage, terminal bool, bs ...Button) Contract {
	defaults := buttons(bs...)
	return Contract{
		Stage:      s,
		Input:      InputButton,
		Allowed:    tokenSet(defaults),
		MaxButtons: len(defaults),
		Defaults:   defaults,
		Terminal:   terminal,
	}
}

func textContract(s Stage) Contract {
	return Contract{
		Stage:      s,
		Input:      InputText,
		Allowed:    map[string]struct{}{},
		MaxButtons: 0,
		Defaults:   nil,
	}
}

var contracts = map[Stage]Contract{
	AskLanguage: buttonContract(AskLanguage, false,
		Button{Token: BtnLangESAR, Label: "Español (Argentina)"},
		Button{Token: BtnLangESES, Label: "Español (España)"},
		Button{Token: BtnLangEN, Label: "English"},
	),
	AskName:    textContract(AskName),
	AskProblem: textContract(AskProblem),
	AskDevice:  textContract(AskDevice),
	AskEmail:   textContract(AskEmail),
	AskPhone:   textContract(AskPhone),
	AskNeed: buttonContract(AskNeed, false,
		Button{Token: BtnHelp, Label: "Tengo un problema"},
		Button{Token: BtnTask, Label: "Necesito hacer algo"},
	),
	RunTests: buttonContract(RunTests, false,
		Button{Token: BtnTestsDone, Label: "Hice las pruebas"},
		Button{Token: BtnTestsFail, Label: "No funcionó"},
		Button{Token: BtnSolved, Label: "Ya lo resolví"},
	),
	AdvancedTests: buttonContract(AdvancedTests, false,
		Button{Token: BtnTestsDone, Label: "Hice las pruebas"},
		Button{Token: BtnTestsFail, Label: "No funcionó"},
	),
	Escalate: buttonContract(Escalate, false,
		Button{Token: BtnYes, Label: "Sí, crear ticket"},
		Button{Token: BtnNo, Label: "Probar algo más"},
	),
	TicketSent: buttonContract(TicketSent, true,
		Button{Token: BtnRestart, Label: "Nueva consulta"},
	),
	Done: buttonContract(Done, true,
		Button{Token: BtnRestart, Label: "Nueva consulta"},
	),
}

// ContractFor returns the contract for a stage. An unknown stage is a
// programming error; callers must only pass stages from this package.
func ContractFor(s Stage) Contract {
	c, ok := contracts[s]
	if !ok {
		panic("stage: no contract for " + string(s))
	}
	return c
}

// Known reports whether s names a stage in the contract table.
func Known(s Stage) bool {
	_, ok := contracts[s]
	return ok
}

// All returns every stage in the contract table in rank order.
func All() []Stage {
	out := make([]Stage, len(ranks))
	copy(out, ranks)
	return out
}

// IsTerminal reports whether the stage is a designated terminal stage.
func IsTerminal(s Stage) bool {
	return ContractFor(s).Terminal
}
