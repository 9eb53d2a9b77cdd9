// Package runner drives a document through the workflow one target at a
// time.
//
// The runner owns the document for the duration of a run. Every step builds
// its edit on a clone, re-validates the clone and only then hands it back,
// so a step either applies completely or not at all. Nothing is written to
// disk here; persisting the final document is the caller's job.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/gate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/handlers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/sanitize"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/sectionstate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/telemetry"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/workflow"
)

// ErrUntrusted is returned when collaborator output cannot be accepted.
var ErrUntrusted = errors.New("collaborator output rejected")

// Outcome is the result class of a step or run.
type Outcome string

const (
	OutcomeProgressed Outcome = "progressed"
	OutcomeBlocked    Outcome = "blocked"
	OutcomeComplete   Outcome = "complete"
)

// ActionReviewGate is the step action reported for review gate targets.
const ActionReviewGate = "review_gate"

// StepResult describes one RunOnce call.
type StepResult struct {
	Target    string                  `json:"target,omitempty"`
	Action    string                  `json:"action,omitempty"`
	Outcome   Outcome                 `json:"outcome"`
	Reason    string                  `json:"reason,omitempty"`
	Questions []string                `json:"questions,omitempty"` // ids inserted
	Resolved  []string                `json:"resolved,omitempty"`
	Gate      *types.ReviewGateResult `json:"gate,omitempty"`
	Changed   bool                    `json:"changed"`

	// Document is the document after the step. It is the input document
	// when nothing changed.
	Document *document.Document `json:"-"`
}

// RunResult describes a RunUntilBlocked call.
type RunResult struct {
	Steps    []StepResult       `json:"steps"`
	Outcome  Outcome            `json:"outcome"`
	Changed  bool               `json:"changed"`
	Document *document.Document `json:"-"`
}

// Runner executes workflow steps for one document type.
type Runner struct {
	Collaborator Collaborator
	Registry     *handlers.Registry
	DocType      string
	Profile      string
	Schema       validation.SchemaVariant
	// Source names the document in the event log.
	Source string
}

// ValidationOptions returns the structural validation options for doc.
func (r *Runner) ValidationOptions(doc *document.Document) validation.Options {
	return validation.Options{
		RequiredSubsections: r.Registry.RequiredSubsections(r.DocType, doc.SectionIDs()),
		QuestionSchema:      r.Schema,
		TableSchemas:        r.Registry.TableSchemas(r.DocType),
	}
}

// RunOnce processes at most one workflow target. Structural errors in the
// input, or in the edit a step would produce, are returned as errors.
func (r *Runner) RunOnce(ctx context.Context, doc *document.Document) (res StepResult, err error) {
	ctx, op := telemetry.StartOp(ctx, "runner", "step", attribute.String("orch.doc_type", r.DocType))
	defer func() {
		op.SetAttributes(
			attribute.String("orch.target", res.Target),
			attribute.String("orch.outcome", string(res.Outcome)),
		)
		op.End(ctx, err)
	}()

	if err := validation.AsError(validation.Validate(doc, r.ValidationOptions(doc))); err != nil {
		return StepResult{Document: doc}, fmt.Errorf("document is structurally invalid: %w", err)
	}
	l, err := ledger.Load(doc)
	if err != nil {
		return StepResult{Document: doc}, err
	}
	order := workflow.ParseOrder(doc)

	target, allComplete, err := workflow.NextTarget(doc, order, l, r.Registry.Modes(r.DocType))
	if err != nil {
		return StepResult{Document: doc}, err
	}
	if allComplete {
		res = StepResult{Target: target, Outcome: OutcomeComplete, Document: doc}
		r.logStep(res)
		return res, nil
	}

	if types.IsReviewGate(target) {
		res, err = r.runGate(ctx, doc, order, target)
	} else {
		res, err = r.runSection(ctx, doc, order, l, target)
	}
	if err != nil {
		debug.LogEvent("STEP_ERROR", target, r.Source, err.Error())
		return StepResult{Target: target, Action: res.Action, Document: doc}, err
	}
	r.logStep(res)
	return res, nil
}

// RunUntilBlocked repeats RunOnce until a step blocks, the workflow
// completes, or maxSteps steps have run.
func (r *Runner) RunUntilBlocked(ctx context.Context, doc *document.Document, maxSteps int) (RunResult, error) {
	if maxSteps < 1 {
		return RunResult{Document: doc}, fmt.Errorf("max steps must be at least 1, got %d", maxSteps)
	}
	run := RunResult{Outcome: OutcomeProgressed, Document: doc}
	for i := 0; i < maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		step, err := r.RunOnce(ctx, run.Document)
		if err != nil {
			return run, err
		}
		run.Steps = append(run.Steps, step)
		run.Document = step.Document
		run.Changed = run.Changed || step.Changed
		if step.Outcome != OutcomeProgressed {
			run.Outcome = step.Outcome
			break
		}
	}
	return run, nil
}

func (r *Runner) logStep(res StepResult) {
	details := fmt.Sprintf("action=%s outcome=%s", res.Action, res.Outcome)
	if res.Reason != "" {
		details += " reason=" + res.Reason
	}
	debug.LogEvent("STEP", res.Target, r.Source, details)
	debug.Logf("step %s: %s -> %s %s\n", res.Target, res.Action, res.Outcome, res.Reason)
}

// commit re-validates an edited clone.
func (r *Runner) commit(next *document.Document) error {
	if err := validation.AsError(validation.Validate(next, r.ValidationOptions(next))); err != nil {
		return fmt.Errorf("edit rejected: %w", err)
	}
	return nil
}

// RunGate runs one review gate regardless of where the workflow stands. The
// gate must be listed in the document's workflow order.
func (r *Runner) RunGate(ctx context.Context, doc *document.Document, gateID string) (res StepResult, err error) {
	target := types.GateTarget(gateID)
	ctx, op := telemetry.StartOp(ctx, "runner", "gate", attribute.String("orch.target", target))
	defer func() { op.End(ctx, err) }()

	if err := validation.AsError(validation.Validate(doc, r.ValidationOptions(doc))); err != nil {
		return StepResult{Document: doc}, fmt.Errorf("document is structurally invalid: %w", err)
	}
	order := workflow.ParseOrder(doc)
	if order.Index(target) < 0 {
		return StepResult{Target: target, Document: doc}, fmt.Errorf("%s is not in the workflow order", target)
	}
	res, err = r.runGate(ctx, doc, order, target)
	if err != nil {
		debug.LogEvent("STEP_ERROR", target, r.Source, err.Error())
		return StepResult{Target: target, Action: ActionReviewGate, Document: doc}, err
	}
	r.logStep(res)
	return res, nil
}

func (r *Runner) runGate(ctx context.Context, doc *document.Document, order workflow.Order, target string) (StepResult, error) {
	res := StepResult{Target: target, Action: ActionReviewGate}
	h := &gate.Handler{
		Reviewer:   r.Collaborator,
		Registry:   r.Registry,
		DocType:    r.DocType,
		Profile:    r.Profile,
		Validation: r.ValidationOptions(doc),
	}
	next, result, err := h.Execute(ctx, target, doc, order)
	if err != nil {
		return res, err
	}
	if err := r.commit(next); err != nil {
		return res, err
	}
	debug.LogEvent("GATE_RESULT", target, r.Source, fmt.Sprintf("passed=%t blockers=%d warnings=%d applied=%d",
		result.Passed, result.Blockers(), result.Warnings(), len(result.Applied)))

	res.Gate = result
	res.Document = next
	res.Changed = !next.Equal(doc)
	if result.Passed {
		res.Outcome = OutcomeProgressed
	} else {
		res.Outcome = OutcomeBlocked
		res.Reason = fmt.Sprintf("review gate failed with %d blocker(s)", result.Blockers())
	}
	return res, nil
}

func (r *Runner) runSection(ctx context.Context, doc *document.Document, order workflow.Order, l *ledger.Ledger, target string) (StepResult, error) {
	st, err := sectionstate.Classify(doc, target, l, r.Registry.Lookup(r.DocType, target).Mode)
	if err != nil {
		return StepResult{Target: target}, err
	}
	action := sectionstate.Decide(st)
	res := StepResult{Target: target, Action: string(action), Document: doc}

	switch action {
	case sectionstate.ActionBlocked:
		res.Outcome = OutcomeBlocked
		res.Reason = fmt.Sprintf("%d unanswered question(s)", st.OpenUnanswered)
		return res, nil
	case sectionstate.ActionGenerateQuestions:
		return r.generateQuestions(ctx, doc, order, l, res)
	case sectionstate.ActionIntegrateAnswers:
		return r.integrateAnswers(ctx, doc, l, res)
	default:
		return res, fmt.Errorf("section %q is not complete but has nothing to do", target)
	}
}

func (r *Runner) generateQuestions(ctx context.Context, doc *document.Document, order workflow.Order, l *ledger.Ledger, res StepResult) (StepResult, error) {
	id := res.Target
	cfg := r.Registry.Lookup(r.DocType, id)

	ctxText, err := sectionContext(doc, order, id, cfg.Scope)
	if err != nil {
		return res, err
	}

	ctx, op := telemetry.StartOp(ctx, "collaborator", "generate_questions", attribute.String("orch.target", id))
	generated, err := r.Collaborator.GenerateQuestions(ctx, QuestionRequest{
		SectionID:        id,
		DocType:          r.DocType,
		Context:          ctxText,
		Profile:          r.Profile,
		AllowSubsections: cfg.Subsections,
	})
	op.End(ctx, err)
	if err != nil {
		return res, fmt.Errorf("generate questions for %s: %w", id, err)
	}

	for _, gq := range generated {
		if markers.ContainsStructural(gq.Question) || markers.ContainsStructural(gq.SectionTarget) {
			return res, fmt.Errorf("%w: question for %s contains structural marker syntax", ErrUntrusted, id)
		}
		target := strings.TrimSpace(gq.SectionTarget)
		if _, ok := doc.Section(target); !ok || types.IsReviewGate(target) {
			if target != "" {
				debug.Logf("question targets unknown section %q, filing under %s\n", target, id)
			}
			target = id
		}
		qid, inserted, err := l.Insert(types.Question{Text: gq.Question, Target: target})
		if err != nil {
			if errors.Is(err, ledger.ErrNoQuestionsTable) {
				return res, err
			}
			debug.Logf("skipping question %q: %v\n", gq.Question, err)
			continue
		}
		if inserted {
			res.Questions = append(res.Questions, qid)
		}
	}

	if len(res.Questions) == 0 {
		res.Outcome = OutcomeBlocked
		res.Reason = "no new questions were generated"
		return res, nil
	}

	next := doc.Clone()
	if err := l.Render(next); err != nil {
		return res, err
	}
	if err := r.commit(next); err != nil {
		return res, err
	}
	res.Document = next
	res.Changed = true
	res.Outcome = OutcomeProgressed
	return res, nil
}

func (r *Runner) integrateAnswers(ctx context.Context, doc *document.Document, l *ledger.Ledger, res StepResult) (StepResult, error) {
	id := res.Target
	cfg := r.Registry.Lookup(r.DocType, id)
	sec, _ := doc.Section(id)
	answered := l.Answered(id)

	req := IntegrationRequest{
		SectionID:    id,
		DocType:      r.DocType,
		Body:         strings.TrimSpace(strings.Join(doc.Body(sec), "\n")),
		Questions:    answered,
		Profile:      r.Profile,
		OutputFormat: cfg.OutputFormat,
	}
	for _, sub := range sec.Subsections {
		req.Subsections = append(req.Subsections, sub.ID)
	}

	ctx, op := telemetry.StartOp(ctx, "collaborator", "integrate_answers",
		attribute.String("orch.target", id),
		attribute.Int("orch.questions", len(answered)),
	)
	out, err := r.Collaborator.IntegrateAnswers(ctx, req)
	op.End(ctx, err)
	if err != nil {
		return res, fmt.Errorf("integrate answers for %s: %w", id, err)
	}
	if out == nil {
		return res, fmt.Errorf("%w: empty integration for %s", ErrUntrusted, id)
	}

	ids := make([]string, len(answered))
	for i, q := range answered {
		ids[i] = q.ID
	}
	report := l.Resolve(ids)
	if !report.OK() {
		return res, fmt.Errorf("resolve %v: unknown=%v already resolved=%v", ids, report.Unknown, report.AlreadyResolved)
	}

	// Ledger rows are rewritten in place first; the body edit below may
	// shift line numbers.
	next := doc.Clone()
	if err := l.Render(next); err != nil {
		return res, err
	}
	if len(sec.Subsections) > 0 {
		err = applySubsections(next, id, cfg, out)
	} else {
		err = applyBody(next, id, cfg, out)
	}
	if err != nil {
		return res, err
	}
	if !cfg.Mode.FollowUpQuestions() {
		stripPlaceholders(next, id)
	}
	if err := r.commit(next); err != nil {
		return res, err
	}

	res.Resolved = report.Resolved
	res.Document = next
	res.Changed = !next.Equal(doc)
	res.Outcome = OutcomeProgressed
	return res, nil
}

func applyBody(doc *document.Document, id string, cfg types.HandlerConfig, out *Integration) error {
	if len(out.Subsections) > 0 {
		return fmt.Errorf("%w: section %s has no subsections", ErrUntrusted, id)
	}
	sec, _ := doc.Section(id)
	if doc.HasTableIn(sec.BodyStart, sec.BodyEnd) {
		return fmt.Errorf("section %s holds a table and cannot be rewritten", id)
	}
	body, err := sanitize.Sanitize(out.Body, cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUntrusted, id, err)
	}
	return doc.ReplaceBody(id, body)
}

func applySubsections(doc *document.Document, id string, cfg types.HandlerConfig, out *Integration) error {
	if len(out.Subsections) == 0 {
		return fmt.Errorf("%w: section %s has subsections but the integration is a single body", ErrUntrusted, id)
	}
	subIDs := make([]string, 0, len(out.Subsections))
	for sub := range out.Subsections {
		subIDs = append(subIDs, sub)
	}
	sort.Strings(subIDs)

	for _, subID := range subIDs {
		sec, _ := doc.Section(id)
		sub, ok := sec.Subsection(subID)
		if !ok {
			return fmt.Errorf("%w: section %s has no subsection %q", ErrUntrusted, id, subID)
		}
		if doc.HasTableIn(sub.BodyStart, sub.End) {
			return fmt.Errorf("subsection %s/%s holds a table and cannot be rewritten", id, subID)
		}
		format := types.FormatProse
		if sub.ContentType == document.ContentBullets {
			format = types.FormatBullets
		}
		body, err := sanitize.SanitizeAs(out.Subsections[subID], cfg, format)
		if err != nil {
			return fmt.Errorf("%w: %s/%s: %w", ErrUntrusted, id, subID, err)
		}
		if err := doc.ReplaceSubsectionBody(id, subID, body); err != nil {
			return err
		}
	}
	return nil
}

// stripPlaceholders removes placeholder tokens left anywhere in a section.
func stripPlaceholders(doc *document.Document, id string) {
	sec, ok := doc.Section(id)
	if !ok {
		return
	}
	for _, line := range sec.Placeholders {
		doc.SetLine(line, strings.TrimRight(markers.StripPlaceholder(doc.Line(line)), " \t"))
	}
}

// sectionContext renders the sections a handler may read as "### <id>"
// blocks.
func sectionContext(doc *document.Document, order workflow.Order, id string, scope types.Scope) (string, error) {
	var ids []string
	switch scope.Kind {
	case types.ScopeEntireDocument:
		ids = doc.SectionIDs()
	case types.ScopeAllPriorSections:
		ids = append(order.PriorSections(id), id)
	case types.ScopeSections:
		for _, s := range scope.Sections {
			if _, ok := doc.Section(s); !ok {
				return "", fmt.Errorf("scope of %s names unknown section %q", id, s)
			}
		}
		ids = scope.Sections
	default:
		ids = []string{id}
	}

	var b strings.Builder
	for _, sid := range ids {
		sec, ok := doc.Section(sid)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n%s", sid, strings.TrimSpace(strings.Join(doc.Body(sec), "\n")))
	}
	return b.String(), nil
}
