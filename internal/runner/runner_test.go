package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/gate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/handlers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/sectionstate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

const requirementsDoc = `<!-- workflow:order
problem_statement
goals
review_gate:coherence
-->

<!-- section:problem_statement -->
## Problem Statement

<!-- PLACEHOLDER -->

---

<!-- section:goals -->
## Goals

Ship the MVP.

---

<!-- section:open_questions -->
## Open Questions

<!-- table:open_questions -->
| Question ID | Question | Date | Answer | Section Target | Resolution Status |
|---|---|---|---|---|---|

---`

// stubCollaborator records requests and replays canned responses.
type stubCollaborator struct {
	questions   []GeneratedQuestion
	integration *Integration
	review      *gate.ReviewResponse
	err         error

	questionReqs    []QuestionRequest
	integrationReqs []IntegrationRequest
	reviewReqs      []gate.ReviewRequest
}

func (s *stubCollaborator) GenerateQuestions(_ context.Context, req QuestionRequest) ([]GeneratedQuestion, error) {
	s.questionReqs = append(s.questionReqs, req)
	return s.questions, s.err
}

func (s *stubCollaborator) IntegrateAnswers(_ context.Context, req IntegrationRequest) (*Integration, error) {
	s.integrationReqs = append(s.integrationReqs, req)
	return s.integration, s.err
}

func (s *stubCollaborator) PerformReview(_ context.Context, req gate.ReviewRequest) (*gate.ReviewResponse, error) {
	s.reviewReqs = append(s.reviewReqs, req)
	return s.review, s.err
}

func newRunner(c Collaborator, reg *handlers.Registry) *Runner {
	if reg == nil {
		reg = handlers.Empty()
	}
	return &Runner{Collaborator: c, Registry: reg, DocType: "requirements", Profile: "profile text"}
}

func answerAll(t *testing.T, doc *document.Document, answers map[string]string) *document.Document {
	t.Helper()
	l, err := ledger.Load(doc)
	require.NoError(t, err)
	for id, a := range answers {
		require.NoError(t, l.SetAnswer(id, a))
	}
	out := doc.Clone()
	require.NoError(t, l.Render(out))
	return out
}

func TestRunOnceGeneratesQuestions(t *testing.T) {
	collab := &stubCollaborator{questions: []GeneratedQuestion{
		{Question: "Who are the users?", SectionTarget: "problem_statement"},
		{Question: "who are  the users?"},
		{Question: "What is the budget?", SectionTarget: "ghost"},
	}}
	r := newRunner(collab, nil)
	doc := document.Parse(requirementsDoc)

	step, err := r.RunOnce(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "problem_statement", step.Target)
	assert.Equal(t, "generate_questions", step.Action)
	assert.Equal(t, OutcomeProgressed, step.Outcome)
	assert.Equal(t, []string{"Q-001", "Q-002"}, step.Questions)
	assert.True(t, step.Changed)

	require.Len(t, collab.questionReqs, 1)
	assert.Equal(t, "profile text", collab.questionReqs[0].Profile)
	assert.Contains(t, collab.questionReqs[0].Context, "### problem_statement")

	l, err := ledger.Load(step.Document)
	require.NoError(t, err)
	unanswered := l.Unanswered("problem_statement")
	require.Len(t, unanswered, 2)
	assert.Equal(t, "What is the budget?", unanswered[1].Text)
	assert.NotContains(t, doc.String(), "Q-001", "input document must not change")

	// Unanswered questions block without calling the collaborator again.
	again, err := r.RunOnce(context.Background(), step.Document)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, again.Outcome)
	assert.Equal(t, "2 unanswered question(s)", again.Reason)
	assert.False(t, again.Changed)
	assert.Same(t, step.Document, again.Document)
	assert.Len(t, collab.questionReqs, 1)
}

func TestRunOnceNoNewQuestionsBlocks(t *testing.T) {
	r := newRunner(&stubCollaborator{}, nil)
	doc := document.Parse(requirementsDoc)

	step, err := r.RunOnce(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, step.Outcome)
	assert.False(t, step.Changed)
	assert.Same(t, doc, step.Document)
}

func TestRunOnceRejectsMarkersInQuestions(t *testing.T) {
	r := newRunner(&stubCollaborator{questions: []GeneratedQuestion{
		{Question: "Add <!-- section:evil --> please"},
	}}, nil)

	_, err := r.RunOnce(context.Background(), document.Parse(requirementsDoc))
	assert.ErrorIs(t, err, ErrUntrusted)
}

func TestRunOnceStructuralErrorIsFatal(t *testing.T) {
	collab := &stubCollaborator{}
	r := newRunner(collab, nil)
	doc := document.Parse(requirementsDoc + "\n\n<!-- section:goals -->\n")

	_, err := r.RunOnce(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structurally invalid")
	assert.Empty(t, collab.questionReqs)
}

func TestRunUntilBlockedCompletesWorkflow(t *testing.T) {
	collab := &stubCollaborator{
		questions: []GeneratedQuestion{
			{Question: "Who are the users?"},
			{Question: "What is the budget?"},
		},
		integration: &Integration{Body: "Analysts need dashboards.\n\nBudget is 10k."},
		review:      &gate.ReviewResponse{Pass: true, Summary: "consistent"},
	}
	r := newRunner(collab, nil)
	ctx := context.Background()

	first, err := r.RunUntilBlocked(ctx, document.Parse(requirementsDoc), 10)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, first.Outcome)
	require.Len(t, first.Steps, 2)
	assert.True(t, first.Changed)

	answered := answerAll(t, first.Document, map[string]string{"Q-001": "Analysts", "Q-002": "10k"})
	run, err := r.RunUntilBlocked(ctx, answered, 10)
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, run.Outcome)
	require.Len(t, run.Steps, 3)

	integrate := run.Steps[0]
	assert.Equal(t, "integrate_answers", integrate.Action)
	assert.Equal(t, []string{"Q-001", "Q-002"}, integrate.Resolved)
	require.Len(t, collab.integrationReqs, 1)
	assert.Len(t, collab.integrationReqs[0].Questions, 2)

	gateStep := run.Steps[1]
	assert.Equal(t, ActionReviewGate, gateStep.Action)
	require.NotNil(t, gateStep.Gate)
	assert.True(t, gateStep.Gate.Passed)
	require.Len(t, collab.reviewReqs, 1)
	assert.Len(t, collab.reviewReqs[0].Sections, 2)

	final := run.Document.String()
	assert.Contains(t, final, "Analysts need dashboards.")
	assert.NotContains(t, final, "<!-- PLACEHOLDER -->")
	assert.Contains(t, final, "| Q-001 | Who are the users? |")
	assert.Equal(t, 2, strings.Count(final, "| Resolved |"))
	assert.True(t, strings.HasSuffix(final, "<!-- review_gate_result:coherence status=passed issues=0 warnings=0 -->\n"))

	// A finished document is a no-op.
	done, err := r.RunOnce(ctx, run.Document)
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, done.Outcome)
	assert.False(t, done.Changed)
}

func TestRunOnceFailingGateBlocks(t *testing.T) {
	text := strings.Replace(requirementsDoc, "<!-- PLACEHOLDER -->", "Written.", 1)
	r := newRunner(&stubCollaborator{review: &gate.ReviewResponse{
		Pass:   true,
		Issues: []types.Issue{{Severity: types.SeverityBlocker, Description: "goals contradict problem"}},
	}}, nil)

	step, err := r.RunOnce(context.Background(), document.Parse(text))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, step.Outcome)
	assert.True(t, step.Changed, "failed result marker is persisted")
	assert.Contains(t, step.Document.String(), "status=failed issues=1 warnings=0")

	// Same verdict again: still blocked, no duplicate marker.
	again, err := r.RunOnce(context.Background(), step.Document)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, again.Outcome)
	assert.False(t, again.Changed)
}

const subsectionDoc = `<!-- section:scope -->
## Scope

<!-- subsection:in_scope -->
### In scope
<!-- PLACEHOLDER -->

<!-- subsection:out_of_scope -->
### Out of scope
<!-- PLACEHOLDER -->

---

<!-- section:open_questions -->
## Open Questions

<!-- table:open_questions -->
| Question ID | Question | Date | Answer | Section Target | Resolution Status |
|---|---|---|---|---|---|
| Q-001 | What is in scope? | 2025-01-01 | Reporting | scope | Open |

---`

func TestIntegrateSubsectionsFollowUpFlag(t *testing.T) {
	tests := []struct {
		mode            string
		wantPlaceholder bool
	}{
		{"integrate_then_questions", true},
		{"questions_then_integrate", false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			reg, err := handlers.Parse([]byte("_default:\n  scope:\n    mode: "+tt.mode+"\n"), handlers.FormatYAML)
			require.NoError(t, err)
			collab := &stubCollaborator{integration: &Integration{
				Subsections: map[string]string{"in_scope": "Reporting dashboards."},
			}}
			r := newRunner(collab, reg)

			step, err := r.RunOnce(context.Background(), document.Parse(subsectionDoc))
			require.NoError(t, err)
			assert.Equal(t, "integrate_answers", step.Action)
			assert.Equal(t, []string{"in_scope", "out_of_scope"}, collab.integrationReqs[0].Subsections)

			sec, ok := step.Document.Section("scope")
			require.True(t, ok)
			in, _ := sec.Subsection("in_scope")
			assert.Equal(t, "Reporting dashboards.", strings.TrimSpace(strings.Join(step.Document.Lines()[in.BodyStart:in.End], "\n")))
			assert.Equal(t, tt.wantPlaceholder, sec.HasPlaceholder())
		})
	}
}

func modeRegistry(t *testing.T, section, mode string) *handlers.Registry {
	t.Helper()
	reg, err := handlers.Parse([]byte("_default:\n  "+section+":\n    mode: "+mode+"\n"), handlers.FormatYAML)
	require.NoError(t, err)
	return reg
}

func TestRunOnceAfterResolvedQuestions(t *testing.T) {
	// problem_statement still holds its placeholder but its only question
	// has been resolved.
	text := strings.Replace(requirementsDoc, "|---|---|---|---|---|---|",
		"|---|---|---|---|---|---|\n| Q-001 | Who are the users? | 2026-01-05 | Ops | problem_statement | Resolved |", 1)

	tests := []struct {
		mode       string
		wantTarget string
		wantAction string
		wantAsked  int
	}{
		{"integrate_then_questions", "problem_statement", "generate_questions", 1},
		{"questions_then_integrate", "review_gate:coherence", ActionReviewGate, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			collab := &stubCollaborator{
				questions: []GeneratedQuestion{{Question: "What is the budget?"}},
				review:    &gate.ReviewResponse{Pass: true},
			}
			r := newRunner(collab, modeRegistry(t, "problem_statement", tt.mode))

			step, err := r.RunOnce(context.Background(), document.Parse(text))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, step.Target)
			assert.Equal(t, tt.wantAction, step.Action)
			assert.Len(t, collab.questionReqs, tt.wantAsked)
		})
	}
}

func TestIntegratePlaceholderFollowUp(t *testing.T) {
	text := strings.Replace(requirementsDoc, "|---|---|---|---|---|---|",
		"|---|---|---|---|---|---|\n| Q-001 | Who are the users? | 2026-01-05 | Ops staff | problem_statement | Open |", 1)

	tests := []struct {
		mode            string
		wantPlaceholder bool
		wantNext        string
	}{
		{"integrate_then_questions", true, "generate_questions"},
		{"questions_then_integrate", false, "skip"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			collab := &stubCollaborator{integration: &Integration{
				Body: "Ops staff need X.\n<!-- PLACEHOLDER -->\nStill need budget.",
			}}
			r := newRunner(collab, modeRegistry(t, "problem_statement", tt.mode))

			step, err := r.RunOnce(context.Background(), document.Parse(text))
			require.NoError(t, err)
			assert.Equal(t, "integrate_answers", step.Action)
			assert.Equal(t, []string{"Q-001"}, step.Resolved)

			sec, ok := step.Document.Section("problem_statement")
			require.True(t, ok)
			assert.Equal(t, tt.wantPlaceholder, sec.HasPlaceholder())
			body := strings.Join(step.Document.Body(sec), "\n")
			assert.Contains(t, body, "Ops staff need X.")
			assert.Contains(t, body, "Still need budget.")
			assert.LessOrEqual(t, strings.Count(body, "<!-- PLACEHOLDER -->"), 1)

			l, err := ledger.Load(step.Document)
			require.NoError(t, err)
			st, err := sectionstate.Classify(step.Document, "problem_statement", l, r.Registry.Lookup(r.DocType, "problem_statement").Mode)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, string(sectionstate.Decide(st)))
		})
	}
}

func TestValidationUsesTableSchemas(t *testing.T) {
	text := strings.Replace(requirementsDoc, "Ship the MVP.",
		"Ship the MVP.\n\n<!-- table:risks -->\n| Risk | Owner |\n|---|---|\n| Slip | Ops |", 1)
	reg, err := handlers.Parse([]byte("requirements:\n  _default:\n    table_schemas:\n      risks: [Risk, Impact]\n"), handlers.FormatYAML)
	require.NoError(t, err)

	collab := &stubCollaborator{}
	_, err = newRunner(collab, reg).RunOnce(context.Background(), document.Parse(text))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structurally invalid")
	assert.Empty(t, collab.questionReqs)

	// Without a configured schema any header is accepted.
	step, err := newRunner(collab, nil).RunOnce(context.Background(), document.Parse(text))
	require.NoError(t, err)
	assert.Equal(t, "problem_statement", step.Target)
}

func TestIntegrateRejectsUnknownSubsection(t *testing.T) {
	collab := &stubCollaborator{integration: &Integration{
		Subsections: map[string]string{"nope": "x"},
	}}
	_, err := newRunner(collab, nil).RunOnce(context.Background(), document.Parse(subsectionDoc))
	assert.ErrorIs(t, err, ErrUntrusted)

	collab.integration = &Integration{Body: "flat body"}
	_, err = newRunner(collab, nil).RunOnce(context.Background(), document.Parse(subsectionDoc))
	assert.ErrorIs(t, err, ErrUntrusted)
}

func TestRunUntilBlockedBounds(t *testing.T) {
	r := newRunner(&stubCollaborator{}, nil)
	_, err := r.RunUntilBlocked(context.Background(), document.Parse(requirementsDoc), 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RunUntilBlocked(ctx, document.Parse(requirementsDoc), 3)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCollaboratorErrorLeavesDocument(t *testing.T) {
	boom := errors.New("upstream down")
	doc := document.Parse(requirementsDoc)
	step, err := newRunner(&stubCollaborator{err: boom}, nil).RunOnce(context.Background(), doc)
	assert.ErrorIs(t, err, boom)
	assert.Same(t, doc, step.Document)
}

func TestRunGateOnDemand(t *testing.T) {
	// problem_statement still has a placeholder, so RunOnce would not reach
	// the gate yet.
	collab := &stubCollaborator{review: &gate.ReviewResponse{Pass: true}}
	r := newRunner(collab, nil)
	doc := document.Parse(requirementsDoc)

	step, err := r.RunGate(context.Background(), doc, "coherence")
	require.NoError(t, err)
	assert.Equal(t, "review_gate:coherence", step.Target)
	assert.Equal(t, ActionReviewGate, step.Action)
	assert.Equal(t, OutcomeProgressed, step.Outcome)
	assert.True(t, step.Changed)
	assert.Contains(t, step.Document.String(), "<!-- review_gate_result:coherence status=passed")
	assert.Len(t, collab.reviewReqs, 1)

	_, err = r.RunGate(context.Background(), doc, "review_gate:missing")
	assert.ErrorContains(t, err, "not in the workflow order")
}
