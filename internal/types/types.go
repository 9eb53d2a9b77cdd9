// Package types defines core data structures shared by the document workflow.
package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// QuestionStatus is the resolution status of an open question.
type QuestionStatus string

// Question status constants. The table cell spelling is load-bearing.
const (
	StatusOpen     QuestionStatus = "Open"
	StatusDeferred QuestionStatus = "Deferred"
	StatusResolved QuestionStatus = "Resolved"
)

// IsValid checks if the status value is one of the three known statuses
func (s QuestionStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusDeferred, StatusResolved:
		return true
	}
	return false
}

// IsPending reports whether a question in this status can still be answered.
func (s QuestionStatus) IsPending() bool {
	return s == StatusOpen || s == StatusDeferred
}

// ParseQuestionStatus parses a table cell into a status, case-insensitive.
// An empty cell means Open.
func ParseQuestionStatus(s string) (QuestionStatus, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return StatusOpen, nil
	}
	for _, st := range []QuestionStatus{StatusOpen, StatusDeferred, StatusResolved} {
		if strings.EqualFold(trimmed, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid question status %q (valid: Open, Deferred, Resolved)", s)
}

// Question is one row of the open-questions ledger.
type Question struct {
	ID     string         `json:"id"`
	Text   string         `json:"question"`
	Target string         `json:"section_target"`
	Date   string         `json:"date,omitempty"`
	Answer string         `json:"answer,omitempty"`
	Status QuestionStatus `json:"status"`
}

// answerSentinels are answer values that mean "no answer yet".
var answerSentinels = map[string]bool{
	"":        true,
	"-":       true,
	"–":       true,
	"—":       true,
	"pending": true,
	"tbd":     true,
}

// IsAnswerSentinel returns true if the answer cell carries no real answer.
func IsAnswerSentinel(answer string) bool {
	return answerSentinels[strings.ToLower(strings.TrimSpace(answer))]
}

// IsAnswered reports whether the question is answerable: a real answer and a
// status that has not yet been resolved.
func (q *Question) IsAnswered() bool {
	return !IsAnswerSentinel(q.Answer) && q.Status.IsPending()
}

// IsUnanswered reports whether the question is still waiting on a human.
func (q *Question) IsUnanswered() bool {
	return IsAnswerSentinel(q.Answer) && q.Status.IsPending()
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeQuestionText lowercases and collapses whitespace so that trivially
// different phrasings of the same question compare equal.
func NormalizeQuestionText(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// DedupKey is the ledger identity of a question: normalized text plus target.
func (q *Question) DedupKey() string {
	return NormalizeQuestionText(q.Text) + "\x00" + strings.TrimSpace(q.Target)
}

var trailingDigitsRe = regexp.MustCompile(`(\d+)$`)

// QuestionNumber extracts the numeric suffix of a question id (Q-007 -> 7).
func QuestionNumber(id string) (int, bool) {
	m := trailingDigitsRe.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatQuestionID renders the canonical id for a sequence number.
func FormatQuestionID(n int) string {
	return fmt.Sprintf("Q-%03d", n)
}

// ReviewGatePrefix marks a workflow target that is a review gate.
const ReviewGatePrefix = "review_gate:"

// IsReviewGate returns true if the workflow target names a review gate.
func IsReviewGate(target string) bool {
	return strings.HasPrefix(target, ReviewGatePrefix)
}

// GateName strips the review gate prefix ("review_gate:coherence" -> "coherence").
func GateName(target string) string {
	return strings.TrimPrefix(target, ReviewGatePrefix)
}

// GateTarget is the inverse of GateName.
func GateTarget(name string) string {
	if IsReviewGate(name) {
		return name
	}
	return ReviewGatePrefix + name
}
