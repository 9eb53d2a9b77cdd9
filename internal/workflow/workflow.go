// Package workflow resolves the declared target order of a document and
// picks the next target that still needs work.
//
// Resolution always scans the order from the start and re-derives every
// target's state from the document, so a target that was complete in an
// earlier run and has since been reverted is picked up again.
package workflow

import (
	"fmt"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/sectionstate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

// Order is the sequence of workflow targets of a document.
type Order struct {
	Targets []string `json:"targets"`
	// Declared is false when the document has no workflow order block and
	// the order was derived from section declaration order.
	Declared bool `json:"declared"`
}

// ParseOrder reads the first workflow order block. Without one, every
// section is a target in declaration order.
func ParseOrder(doc *document.Document) Order {
	res := doc.Scan()
	if len(res.Orders) > 0 {
		block := res.Orders[0]
		targets := make([]string, 0, len(block.Entries))
		for _, e := range block.Entries {
			targets = append(targets, e.ID)
		}
		return Order{Targets: targets, Declared: true}
	}
	return Order{Targets: doc.SectionIDs()}
}

// Index returns the position of target in the order, or -1.
func (o Order) Index(target string) int {
	for i, t := range o.Targets {
		if t == target {
			return i
		}
	}
	return -1
}

// Sections returns the non-gate targets.
func (o Order) Sections() []string {
	var out []string
	for _, t := range o.Targets {
		if !types.IsReviewGate(t) {
			out = append(out, t)
		}
	}
	return out
}

// Gates returns the review gate targets.
func (o Order) Gates() []string {
	var out []string
	for _, t := range o.Targets {
		if types.IsReviewGate(t) {
			out = append(out, t)
		}
	}
	return out
}

// PriorSections returns the non-gate targets declared before target.
func (o Order) PriorSections(target string) []string {
	idx := o.Index(target)
	if idx < 0 {
		return nil
	}
	var out []string
	for _, t := range o.Targets[:idx] {
		if !types.IsReviewGate(t) {
			out = append(out, t)
		}
	}
	return out
}

// GateResults returns the latest persisted result of every gate, keyed by
// gate target (review_gate:<name>).
func GateResults(doc *document.Document) map[string]types.GateRecord {
	out := make(map[string]types.GateRecord)
	for _, m := range doc.Scan().Of(markers.KindGateResult) {
		target := types.GateTarget(m.ID)
		out[target] = types.GateRecord{
			GateID:   target,
			Status:   m.Status,
			Issues:   m.Issues,
			Warnings: m.Warnings,
			Line:     m.Line,
		}
	}
	return out
}

// TargetStatus is the derived state of one workflow target.
type TargetStatus struct {
	Target   string              `json:"target"`
	IsGate   bool                `json:"is_gate"`
	Complete bool                `json:"complete"`
	Action   sectionstate.Action `json:"action,omitempty"`
	State    *sectionstate.State `json:"state,omitempty"`
	Gate     *types.GateRecord   `json:"gate,omitempty"`
}

// ModeOf returns the handler mode of a section target. A nil ModeOf treats
// every section as integrate_then_questions.
type ModeOf func(sectionID string) types.Mode

func (m ModeOf) mode(sectionID string) types.Mode {
	if m == nil {
		return types.ModeIntegrateThenQuestions
	}
	return m(sectionID)
}

// Status classifies one target.
func Status(doc *document.Document, target string, l *ledger.Ledger, gates map[string]types.GateRecord, modes ModeOf) (TargetStatus, error) {
	if types.IsReviewGate(target) {
		ts := TargetStatus{Target: target, IsGate: true}
		if rec, ok := gates[target]; ok {
			ts.Gate = &rec
			ts.Complete = rec.Status == types.GatePassed
		}
		return ts, nil
	}
	st, err := sectionstate.Classify(doc, target, l, modes.mode(target))
	if err != nil {
		return TargetStatus{}, fmt.Errorf("workflow target %q: %w", target, err)
	}
	action := sectionstate.Decide(st)
	return TargetStatus{
		Target:   target,
		Complete: action == sectionstate.ActionSkip,
		Action:   action,
		State:    &st,
	}, nil
}

// Evaluate classifies every target in order.
func Evaluate(doc *document.Document, order Order, l *ledger.Ledger, modes ModeOf) ([]TargetStatus, error) {
	gates := GateResults(doc)
	out := make([]TargetStatus, 0, len(order.Targets))
	for _, t := range order.Targets {
		ts, err := Status(doc, t, l, gates, modes)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

// NextTarget returns the first target that is not complete. When every
// target is complete it returns the last target and allComplete=true; an
// empty order is trivially complete.
func NextTarget(doc *document.Document, order Order, l *ledger.Ledger, modes ModeOf) (target string, allComplete bool, err error) {
	gates := GateResults(doc)
	for _, t := range order.Targets {
		ts, err := Status(doc, t, l, gates, modes)
		if err != nil {
			return "", false, err
		}
		if !ts.Complete {
			return t, false, nil
		}
	}
	if len(order.Targets) == 0 {
		return "", true, nil
	}
	return order.Targets[len(order.Targets)-1], true, nil
}
