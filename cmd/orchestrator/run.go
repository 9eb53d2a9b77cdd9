package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/completion"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/docstore"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ui"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

func runRoot(ctx context.Context, arg string) error {
	path, err := docPath(arg)
	if err != nil {
		return err
	}
	switch {
	case runFlags.validateStructure:
		return validateStructure(ctx, path)
	case runFlags.validate:
		return validateCompletion(ctx, path, runFlags.strict)
	}
	if runFlags.strict {
		WarnError("--strict only applies with --validate")
	}
	_, err = runWorkflow(ctx, path, config.MaxSteps(), runFlags.dryRun)
	return err
}

// validateStructure checks one document. Structural errors exit 2.
func validateStructure(ctx context.Context, path string) error {
	r, err := newInspector(path)
	if err != nil {
		return err
	}
	doc, err := readDocument(ctx, path)
	if err != nil {
		return err
	}
	errs := validation.Validate(doc, r.ValidationOptions(doc))
	if jsonOutput {
		outputJSON(validateReport{Document: path, Valid: len(errs) == 0, Errors: nonNilErrors(errs)})
	} else {
		printStructuralErrors(path, errs)
	}
	if len(errs) > 0 {
		return &silentError{err: validation.AsError(errs)}
	}
	return nil
}

type completionReport struct {
	Document string `json:"document"`
	Strict   bool   `json:"strict"`
	completion.Status
}

// validateCompletion evaluates the completion checks. Incomplete exits 1.
func validateCompletion(ctx context.Context, path string, strict bool) error {
	r, err := newInspector(path)
	if err != nil {
		return err
	}
	doc, err := readDocument(ctx, path)
	if err != nil {
		return err
	}
	st := r.Completion(doc, strict, config.WarningsBlockStrict())
	debug.LogEvent("VALIDATE", "", r.Source, fmt.Sprintf("complete=%t strict=%t", st.Complete, strict))

	if jsonOutput {
		outputJSON(completionReport{Document: path, Strict: strict, Status: st})
	} else {
		printCompletion(path, st)
	}
	if !st.Complete {
		return errBlocked
	}
	return nil
}

func printCompletion(path string, st completion.Status) {
	fmt.Printf("%s\n", ui.RenderCategory(filepath.Base(path)))
	for _, c := range st.Checks {
		fmt.Printf("  %s %s\n", ui.RenderCheck(c.Passed, c.Blocking), c.Name)
		for _, d := range c.Details {
			fmt.Printf("      %s\n", ui.RenderMuted(d))
		}
	}
	for _, w := range st.Warnings {
		fmt.Printf("  %s %s\n", ui.RenderWarn(ui.IconWarn), w)
	}
	if st.Complete {
		fmt.Printf("\n%s document is complete\n", ui.RenderPass(ui.IconPass))
	} else {
		fmt.Printf("\n%s %d check%s failing\n", ui.RenderFail(ui.IconFail), len(st.Failed()), plural(len(st.Failed())))
	}
}

type runReport struct {
	Document string `json:"document"`
	runner.RunResult
	saveResult
}

// runWorkflow runs until blocked under the document's exclusive lock and
// writes the result once at the end. Nothing is written when a step fails.
func runWorkflow(ctx context.Context, path string, maxSteps int, dryRun bool) (runner.RunResult, error) {
	r, err := newWorkflowRunner(path)
	if err != nil {
		return runner.RunResult{}, err
	}

	var (
		result runner.RunResult
		saved  saveResult
	)
	err = lockfile.WithExclusive(ctx, path, lockfile.DefaultTimeout, func() error {
		doc, err := docstore.Load(path)
		if err != nil {
			return err
		}
		debug.LogEvent("RUN_START", "", r.Source, fmt.Sprintf("doc_type=%s max_steps=%d dry_run=%t", r.DocType, maxSteps, dryRun))
		result, err = r.RunUntilBlocked(ctx, doc, maxSteps)
		if err != nil {
			return err
		}
		if !result.Changed {
			return nil
		}
		saved, err = save(path, result.Document, dryRun)
		return err
	})
	if err != nil {
		debug.LogEvent("RUN_ERROR", "", filepath.Base(path), err.Error())
		return result, err
	}
	debug.LogEvent("RUN_END", "", r.Source, fmt.Sprintf("outcome=%s steps=%d written=%t", result.Outcome, len(result.Steps), saved.Written))

	if jsonOutput {
		outputJSON(runReport{Document: path, RunResult: result, saveResult: saved})
	} else {
		printRun(path, result, saved)
	}
	if result.Outcome == runner.OutcomeBlocked {
		return result, errBlocked
	}
	return result, nil
}

func printRun(path string, result runner.RunResult, saved saveResult) {
	for _, s := range result.Steps {
		printStep(s)
	}
	switch {
	case saved.DryRun && result.Changed:
		fmt.Printf("%s dry run: %s not written\n", ui.RenderMuted(ui.IconSkip), path)
	case saved.Written && saved.Backup != "":
		fmt.Printf("%s wrote %s (backup %s)\n", ui.RenderPass(ui.IconPass), path, saved.Backup)
	case saved.Written:
		fmt.Printf("%s wrote %s\n", ui.RenderPass(ui.IconPass), path)
	}
	if result.Outcome == runner.OutcomeProgressed {
		notef("stopped after %d step%s; run again to continue\n", len(result.Steps), plural(len(result.Steps)))
	}
}

func printStep(s runner.StepResult) {
	line := fmt.Sprintf("%s %s", ui.PadRight(ui.RenderAction(string(s.Outcome)), 12), s.Target)
	if s.Action != "" {
		line += " " + ui.RenderMuted("("+s.Action+")")
	}
	switch {
	case len(s.Questions) > 0:
		line += fmt.Sprintf(": added %s", joinIDs(s.Questions))
	case len(s.Resolved) > 0:
		line += fmt.Sprintf(": resolved %s", joinIDs(s.Resolved))
	case s.Gate != nil:
		line += fmt.Sprintf(": %d blocker%s, %d warning%s",
			s.Gate.Blockers(), plural(s.Gate.Blockers()), s.Gate.Warnings(), plural(s.Gate.Warnings()))
	}
	if s.Reason != "" {
		line += " " + ui.RenderMuted("["+s.Reason+"]")
	}
	fmt.Println(line)
}
