// Package gate runs review gates.
//
// A review gate is a workflow target (review_gate:<name>) that does not edit
// a section of its own. It collects the sections in its scope, asks a
// Reviewer to critique them, validates the patches the reviewer suggests,
// applies them according to the gate's auto-apply policy, and persists the
// outcome as a review_gate_result marker at the end of the document.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/handlers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/sanitize"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/workflow"
)

var (
	// ErrNotInOrder is returned when a prior-sections scope is resolved for a
	// gate that the workflow order does not declare.
	ErrNotInOrder = errors.New("review gate is not in the workflow order")
	// ErrUnknownSection is returned when an explicit scope names a missing section.
	ErrUnknownSection = errors.New("scope names an unknown section")
	// ErrEmptyScope is returned when a gate has nothing to review.
	ErrEmptyScope = errors.New("review gate scope is empty")
)

// SectionBody is one section handed to the reviewer.
type SectionBody struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// ReviewRequest is everything a reviewer gets to see.
type ReviewRequest struct {
	GateID   string        `json:"gate_id"`
	DocType  string        `json:"doc_type"`
	Sections []SectionBody `json:"sections"`
	Profile  string        `json:"profile,omitempty"`
	Rules    []string      `json:"rules,omitempty"`
}

// ReviewResponse is the reviewer's verdict. It is untrusted input.
type ReviewResponse struct {
	Pass    bool          `json:"pass"`
	Issues  []types.Issue `json:"issues"`
	Patches []types.Patch `json:"patches"`
	Summary string        `json:"summary"`
}

// Reviewer critiques a set of sections.
type Reviewer interface {
	PerformReview(ctx context.Context, req ReviewRequest) (*ReviewResponse, error)
}

// ResolveScope returns the section ids a gate reviews, in document order for
// the ordered scopes. The gate itself is never part of its scope.
func ResolveScope(doc *document.Document, order workflow.Order, gateID string, scope types.Scope) ([]string, error) {
	var ids []string
	switch scope.Kind {
	case types.ScopeEntireDocument:
		ids = doc.SectionIDs()
	case types.ScopeSections:
		for _, id := range scope.Sections {
			if _, ok := doc.Section(id); !ok {
				return nil, fmt.Errorf("%s: %w: %s", gateID, ErrUnknownSection, id)
			}
			ids = append(ids, id)
		}
	default:
		// A gate has no section of its own, so current_section means the
		// sections before it.
		if order.Index(gateID) < 0 {
			return nil, fmt.Errorf("%s: %w", gateID, ErrNotInOrder)
		}
		ids = order.PriorSections(gateID)
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !types.IsReviewGate(id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", gateID, ErrEmptyScope)
	}
	return out, nil
}

// ValidatePatch checks a suggested patch against the document and returns a
// copy with Validated and Reason filled in.
func ValidatePatch(doc *document.Document, p types.Patch) types.Patch {
	p.Validated = false
	p.Reason = ""

	sec, ok := doc.Section(p.Section)
	switch {
	case !ok:
		p.Reason = "unknown section"
	case strings.TrimSpace(p.Suggestion) == "":
		p.Reason = "empty suggestion"
	case markers.ContainsStructural(p.Suggestion):
		p.Reason = "suggestion contains structural marker syntax"
	case sec.Locked:
		p.Reason = "section is locked"
	case len(sec.Subsections) > 0 || doc.HasTableIn(sec.BodyStart, sec.BodyEnd):
		p.Reason = "section body holds subsections or tables"
	default:
		p.Validated = true
	}
	return p
}

// SelectPatches applies the auto-apply policy to validated patches. It
// returns the indexes of the patches to apply and a reason for every patch
// that was held back.
func SelectPatches(patches []types.Patch, policy types.ApplyPolicy) (apply []int, dropped []string) {
	switch policy {
	case types.ApplyAlways:
		for i, p := range patches {
			if p.Validated {
				apply = append(apply, i)
			} else {
				dropped = append(dropped, fmt.Sprintf("%s: %s", p.Section, p.Reason))
			}
		}
	case types.ApplyIfValidationPasses:
		for i, p := range patches {
			if !p.Validated {
				dropped = append(dropped, fmt.Sprintf("%s: %s", p.Section, p.Reason))
				continue
			}
			apply = append(apply, i)
		}
		if len(dropped) > 0 {
			dropped = append(dropped, fmt.Sprintf("batch rejected: %d of %d patches invalid", len(dropped), len(patches)))
			apply = nil
		}
	}
	return apply, dropped
}

// AppendResult appends the persisted form of rec to the end of doc unless
// the gate's latest marker already records the same outcome. It reports
// whether the document changed.
func AppendResult(doc *document.Document, rec types.GateRecord) bool {
	if prev, ok := workflow.GateResults(doc)[rec.GateID]; ok &&
		prev.Status == rec.Status && prev.Issues == rec.Issues && prev.Warnings == rec.Warnings {
		return false
	}
	var add []string
	if n := doc.Len(); n > 0 && strings.TrimSpace(doc.Line(n-1)) != "" {
		add = append(add, "")
	}
	add = append(add, markers.FormatGateResult(rec))
	doc.Splice(doc.Len(), doc.Len(), add)
	return true
}

// Handler executes review gates for one document type.
type Handler struct {
	Reviewer   Reviewer
	Registry   *handlers.Registry
	DocType    string
	Profile    string
	Validation validation.Options
}

// Execute runs one gate against doc. The input document is not modified;
// the returned document carries any applied patches and the result marker.
func (h *Handler) Execute(ctx context.Context, gateID string, doc *document.Document, order workflow.Order) (*document.Document, *types.ReviewGateResult, error) {
	if !types.IsReviewGate(gateID) {
		return nil, nil, fmt.Errorf("%q is not a review gate target", gateID)
	}
	cfg := h.Registry.Lookup(h.DocType, gateID)

	ids, err := ResolveScope(doc, order, gateID, cfg.Scope)
	if err != nil {
		return nil, nil, err
	}
	req := ReviewRequest{
		GateID:  gateID,
		DocType: h.DocType,
		Profile: h.Profile,
		Rules:   cfg.ReviewRules,
	}
	for _, id := range ids {
		sec, _ := doc.Section(id)
		req.Sections = append(req.Sections, SectionBody{ID: id, Body: strings.TrimSpace(strings.Join(doc.Body(sec), "\n"))})
	}

	resp, err := h.Reviewer.PerformReview(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("review %s: %w", gateID, err)
	}
	if resp == nil {
		return nil, nil, fmt.Errorf("review %s: empty response", gateID)
	}

	result := &types.ReviewGateResult{GateID: gateID, Summary: resp.Summary}
	for _, iss := range resp.Issues {
		iss.Severity = types.NormalizeSeverity(string(iss.Severity))
		result.Issues = append(result.Issues, iss)
	}
	result.Passed = resp.Pass && result.Blockers() == 0

	// Sanitizing uses the target section's config; a patch it rejects is
	// invalid like any other.
	bodies := make([][]string, len(resp.Patches))
	for i, p := range resp.Patches {
		p = ValidatePatch(doc, p)
		if p.Validated {
			body, err := sanitize.Sanitize(p.Suggestion, h.Registry.Lookup(h.DocType, p.Section))
			if err != nil {
				p.Validated = false
				p.Reason = err.Error()
			}
			bodies[i] = body
		}
		result.Patches = append(result.Patches, p)
	}

	out := doc.Clone()
	apply, dropped := SelectPatches(result.Patches, cfg.AutoApplyPatches)
	for _, i := range apply {
		p := result.Patches[i]
		if err := out.ReplaceBody(p.Section, bodies[i]); err != nil {
			dropped = append(dropped, fmt.Sprintf("%s: %v", p.Section, err))
			continue
		}
		result.Applied = append(result.Applied, p.Section)
	}
	if len(result.Applied) > 0 {
		if errs := validation.Validate(out, h.Validation); len(errs) > 0 {
			dropped = append(dropped, fmt.Sprintf("patches reverted: %v", validation.AsError(errs)))
			result.Applied = nil
			out = doc.Clone()
		}
	}
	result.Dropped = dropped
	for _, reason := range dropped {
		debug.Logf("gate %s: patch not applied: %s\n", gateID, reason)
	}

	AppendResult(out, result.Record())
	return out, result, nil
}
