package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/docstore"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ui"
)

var gateCmd = &cobra.Command{
	Use:     "gate <document> <gate-id>",
	GroupID: "workflow",
	Short:   "Run one review gate now",
	Long: `Runs a review gate out of turn, for example after editing a section by hand.
The gate id may be given with or without the review_gate: prefix and must
appear in the document's workflow order. Patches are applied according to the
gate's auto_apply_patches setting.

Exits 1 when the gate fails.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		path, err := docPath(args[0])
		if err != nil {
			return err
		}
		return runGate(rootCtx, path, args[1], dryRun)
	},
}

type gateReport struct {
	Document string `json:"document"`
	runner.StepResult
	saveResult
}

func runGate(ctx context.Context, path, gateID string, dryRun bool) error {
	r, err := newWorkflowRunner(path)
	if err != nil {
		return err
	}

	var (
		step  runner.StepResult
		saved saveResult
	)
	err = lockfile.WithExclusive(ctx, path, lockfile.DefaultTimeout, func() error {
		doc, err := docstore.Load(path)
		if err != nil {
			return err
		}
		step, err = r.RunGate(ctx, doc, gateID)
		if err != nil {
			return err
		}
		if !step.Changed {
			return nil
		}
		saved, err = save(path, step.Document, dryRun)
		return err
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(gateReport{Document: path, StepResult: step, saveResult: saved})
	} else {
		printGate(step, saved)
	}
	if step.Outcome == runner.OutcomeBlocked {
		return errBlocked
	}
	return nil
}

func printGate(step runner.StepResult, saved saveResult) {
	res := step.Gate
	if res == nil {
		printStep(step)
		return
	}
	status := ui.RenderPass(ui.IconPass + " passed")
	if !res.Passed {
		status = ui.RenderFail(ui.IconFail + " failed")
	}
	fmt.Printf("%s %s\n", ui.RenderCategory(step.Target), status)
	for _, is := range res.Issues {
		icon := ui.RenderWarn(ui.IconWarn)
		if is.Severity == types.SeverityBlocker {
			icon = ui.RenderFail(ui.IconFail)
		}
		line := fmt.Sprintf("  %s %s", icon, is.Description)
		if is.Section != "" {
			line += " " + ui.RenderMuted("("+is.Section+")")
		}
		fmt.Println(line)
	}
	if len(res.Applied) > 0 {
		fmt.Printf("  applied patches: %s\n", joinIDs(res.Applied))
	}
	for _, d := range res.Dropped {
		fmt.Printf("  %s %s\n", ui.RenderMuted("patch dropped:"), d)
	}
	if res.Summary != "" {
		fmt.Printf("\n%s\n", ui.WrapText(res.Summary, 80))
	}
	switch {
	case saved.DryRun:
		fmt.Printf("%s dry run: result not written\n", ui.RenderMuted(ui.IconSkip))
	case saved.Written:
		fmt.Printf("%s recorded result\n", ui.RenderPass(ui.IconPass))
	}
}

func init() {
	gateCmd.Flags().Bool("dry-run", false, "Run the gate without writing the result")
	rootCmd.AddCommand(gateCmd)
}
