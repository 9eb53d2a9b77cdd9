// Package sectionstate classifies a section's completion state and maps it to
// the next workflow action. Decide is the only place section branching is
// decided.
package sectionstate

import (
	"fmt"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

// Action is what the workflow should do with a section.
type Action string

const (
	ActionSkip              Action = "skip"
	ActionGenerateQuestions Action = "generate_questions"
	ActionBlocked           Action = "blocked"
	ActionIntegrateAnswers  Action = "integrate_answers"
)

// State is the classification of one section.
type State struct {
	SectionID        string `json:"section_id"`
	Locked           bool   `json:"locked"`
	HasPlaceholder   bool   `json:"has_placeholder"`
	OpenUnanswered   int    `json:"open_unanswered"`
	Answered         int    `json:"answered"`
	EverHadQuestions bool   `json:"ever_had_questions"`
	// SinglePass is set for modes that never ask follow-up questions: once
	// the section has had questions it is not asked for more.
	SinglePass bool `json:"single_pass"`
}

// Classify computes the state of a section from the document, its ledger and
// the section's handler mode.
func Classify(doc *document.Document, sectionID string, l *ledger.Ledger, mode types.Mode) (State, error) {
	sec, ok := doc.Section(sectionID)
	if !ok {
		return State{}, fmt.Errorf("section %q not found", sectionID)
	}
	return State{
		SectionID:        sectionID,
		Locked:           sec.Locked,
		HasPlaceholder:   sec.HasPlaceholder(),
		OpenUnanswered:   len(l.Unanswered(sectionID)),
		Answered:         len(l.Answered(sectionID)),
		EverHadQuestions: len(l.ForSection(sectionID)) > 0,
		SinglePass:       !mode.FollowUpQuestions(),
	}, nil
}

// Decide maps a state to exactly one action; the first matching row wins.
//
//	locked                                   -> skip
//	placeholder, no unanswered, no answered,
//	  single pass and had questions before   -> skip
//	placeholder, no unanswered, no answered  -> generate_questions
//	unanswered                               -> blocked
//	answered                                 -> integrate_answers
//	otherwise                                -> skip
func Decide(s State) Action {
	switch {
	case s.Locked:
		return ActionSkip
	case s.HasPlaceholder && s.OpenUnanswered == 0 && s.Answered == 0:
		if s.SinglePass && s.EverHadQuestions {
			return ActionSkip
		}
		return ActionGenerateQuestions
	case s.OpenUnanswered > 0:
		return ActionBlocked
	case s.Answered > 0:
		return ActionIntegrateAnswers
	default:
		return ActionSkip
	}
}

// Complete reports whether the section needs no further work.
func (s State) Complete() bool {
	return Decide(s) == ActionSkip
}
