package runner

import (
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/completion"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/workflow"
)

// Report is a read-only snapshot of where a document stands in its
// workflow. Targets and Next are empty when the document is invalid.
type Report struct {
	Valid       bool                          `json:"valid"`
	Errors      []*validation.StructuralError `json:"errors"`
	Targets     []workflow.TargetStatus       `json:"targets"`
	Next        string                        `json:"next,omitempty"`
	AllComplete bool                          `json:"all_complete"`
	Questions   []types.Question              `json:"questions"`
}

// Inspect classifies every workflow target without changing anything. It
// needs no collaborator.
func (r *Runner) Inspect(doc *document.Document) (*Report, error) {
	rep := &Report{
		Errors:    validation.Validate(doc, r.ValidationOptions(doc)),
		Targets:   []workflow.TargetStatus{},
		Questions: []types.Question{},
	}
	if rep.Errors == nil {
		rep.Errors = []*validation.StructuralError{}
	}
	rep.Valid = len(rep.Errors) == 0
	if !rep.Valid {
		return rep, nil
	}

	l, err := ledger.Load(doc)
	if err != nil {
		return nil, err
	}
	rep.Questions = append(rep.Questions, l.All()...)

	order := workflow.ParseOrder(doc)
	targets, err := workflow.Evaluate(doc, order, l, r.Registry.Modes(r.DocType))
	if err != nil {
		return nil, err
	}
	rep.Targets = append(rep.Targets, targets...)

	rep.AllComplete = true
	for _, ts := range targets {
		if !ts.Complete {
			rep.Next = ts.Target
			rep.AllComplete = false
			break
		}
	}
	return rep, nil
}

// Completion evaluates the completion checks for doc with the runner's
// registry and validation options.
func (r *Runner) Completion(doc *document.Document, strict, warningsBlockStrict bool) completion.Status {
	return completion.Evaluate(doc, workflow.ParseOrder(doc), r.Registry, completion.Options{
		DocType:             r.DocType,
		Strict:              strict,
		WarningsBlockStrict: warningsBlockStrict,
		Validation:          r.ValidationOptions(doc),
	})
}
