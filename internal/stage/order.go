// SPDX-License-Identifier: MIT

package stage

// ranks is the fixed partial order over stages used by backward-transition
// auditing. DONE shares the escalation tier: reaching it is never backward.
var ranks = []Stage{
	AskLanguage,
	AskName,
	AskNeed,
	AskProblem,
	AskDevice,
	RunTests,
	AdvancedTests,
	Escalate,
	AskEmail,
	AskPhone,
	TicketSent,
	Done,
}

var rankIndex = func() map[Stage]int {
	m := make(map[Stage]int, len(ranks))
	for i, s := range ranks {
		m[s] = i
	}
	return m
}()

// Rank returns the topological rank of a stage.
func Rank(s Stage) int {
	r, ok := rankIndex[s]
	if !ok {
		panic("stage: no rank for " + string(s))
	}
	return r
}

type edge struct {
	from Stage
	to   Stage
}

// legalRegressions whitelists backward transitions that are part of the
// designed flow rather than anomalies.
var legalRegressions = map[edge]struct{}{
	{from: Escalate, to: AdvancedTests}: {}, // "try something else" loop
	{from: TicketSent, to: AskLanguage}: {}, // restart
	{from: Done, to: AskLanguage}:       {}, // restart
}

// LegalRegression reports whether from→to is a whitelisted backward edge.
func LegalRegression(from, to Stage) bool {
	_, ok := legalRegressions[edge{from: from, to: to}]
	return ok
}
