// Package completion decides whether a document is done.
//
// Evaluate is read-only: it never changes the document and two calls on the
// same document return identical results, so it can back a standalone
// --validate run.
package completion

import (
	"fmt"
	"sort"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/handlers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/workflow"
)

// Check names.
const (
	CheckNoPlaceholders  = "no_placeholders"
	CheckNoOpenQuestions = "no_open_questions"
	CheckGatesPassed     = "all_review_gates_passed"
	CheckStructureValid  = "structure_valid"
	CheckTargetsComplete = "all_targets_complete"
)

// Check is the outcome of one named completion check.
type Check struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Blocking bool     `json:"blocking"`
	Details  []string `json:"details,omitempty"`
}

// Status is the overall completion verdict.
type Status struct {
	Complete bool     `json:"complete"`
	Checks   []Check  `json:"checks"`
	Warnings []string `json:"warnings,omitempty"`
}

// Check returns the named check.
func (s Status) Check(name string) (Check, bool) {
	for _, c := range s.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Failed returns the blocking checks that did not pass.
func (s Status) Failed() []Check {
	var out []Check
	for _, c := range s.Checks {
		if c.Blocking && !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Options tunes the evaluation.
type Options struct {
	DocType string
	// Strict makes Deferred questions fail no_open_questions.
	Strict bool
	// WarningsBlockStrict makes gate warnings fail all_review_gates_passed
	// in strict mode.
	WarningsBlockStrict bool
	Validation          validation.Options
}

// Evaluate runs every completion check against doc.
func Evaluate(doc *document.Document, order workflow.Order, reg *handlers.Registry, opts Options) Status {
	var st Status

	structure := Check{Name: CheckStructureValid, Blocking: true}
	for _, e := range validation.Validate(doc, opts.Validation) {
		structure.Details = append(structure.Details, e.Error())
	}

	l, lerr := ledger.Load(doc)

	placeholders := Check{Name: CheckNoPlaceholders, Blocking: true}
	for _, id := range order.Sections() {
		if reg.Lookup(opts.DocType, id).Optional {
			continue
		}
		sec, ok := doc.Section(id)
		if !ok {
			placeholders.Details = append(placeholders.Details, fmt.Sprintf("%s: section missing", id))
			continue
		}
		if n := len(sec.Placeholders); n > 0 {
			placeholders.Details = append(placeholders.Details, fmt.Sprintf("%s: %d placeholder(s)", id, n))
		}
	}

	questions := Check{Name: CheckNoOpenQuestions, Blocking: true}
	if lerr != nil {
		questions.Details = append(questions.Details, lerr.Error())
	} else {
		for _, q := range l.Pending() {
			msg := fmt.Sprintf("%s (%s) is %s", q.ID, q.Target, q.Status)
			if q.Status == types.StatusDeferred && !opts.Strict {
				st.Warnings = append(st.Warnings, msg)
				continue
			}
			questions.Details = append(questions.Details, msg)
		}
	}

	gates := Check{Name: CheckGatesPassed, Blocking: true}
	results := workflow.GateResults(doc)
	for _, g := range order.Gates() {
		rec, ok := results[g]
		switch {
		case !ok:
			gates.Details = append(gates.Details, fmt.Sprintf("%s: not run", g))
		case rec.Status != types.GatePassed:
			gates.Details = append(gates.Details, fmt.Sprintf("%s: %s with %d blocker(s)", g, rec.Status, rec.Issues))
		case rec.Warnings > 0:
			msg := fmt.Sprintf("%s: passed with %d warning(s)", g, rec.Warnings)
			if opts.Strict && opts.WarningsBlockStrict {
				gates.Details = append(gates.Details, msg)
			} else {
				st.Warnings = append(st.Warnings, msg)
			}
		}
	}

	targets := Check{Name: CheckTargetsComplete, Blocking: true}
	if lerr != nil {
		targets.Details = append(targets.Details, "questions ledger unreadable")
	} else if statuses, err := workflow.Evaluate(doc, order, l, reg.Modes(opts.DocType)); err != nil {
		targets.Details = append(targets.Details, err.Error())
	} else {
		for _, ts := range statuses {
			if ts.Complete {
				continue
			}
			if ts.IsGate {
				targets.Details = append(targets.Details, fmt.Sprintf("%s: gate not passed", ts.Target))
			} else {
				targets.Details = append(targets.Details, fmt.Sprintf("%s: %s", ts.Target, ts.Action))
			}
		}
	}

	st.Checks = []Check{placeholders, questions, gates, structure, targets}
	st.Complete = true
	for i := range st.Checks {
		c := &st.Checks[i]
		c.Passed = len(c.Details) == 0
		if c.Blocking && !c.Passed {
			st.Complete = false
		}
	}
	sort.Strings(st.Warnings)
	return st
}
