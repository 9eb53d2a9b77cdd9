package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ui"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:     "status <document>",
	GroupID: "workflow",
	Short:   "Show where each workflow target stands",
	Long: `Classifies every target in the document's workflow order and shows the action
the next run would take. With --show, renders one section instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetString("show")
		noPager, _ := cmd.Flags().GetBool("no-pager")
		path, err := docPath(args[0])
		if err != nil {
			return err
		}
		if show != "" {
			return showSection(rootCtx, path, show, noPager)
		}
		return showStatus(rootCtx, path)
	},
}

type statusReport struct {
	Document string `json:"document"`
	*runner.Report
}

func showStatus(ctx context.Context, path string) error {
	r, err := newInspector(path)
	if err != nil {
		return err
	}
	doc, err := readDocument(ctx, path)
	if err != nil {
		return err
	}
	rep, err := r.Inspect(doc)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(statusReport{Document: path, Report: rep})
	} else if !rep.Valid {
		printStructuralErrors(path, rep.Errors)
	} else {
		printStatus(path, rep)
		if info, err := lockfile.ReadWatchLock(path); err == nil && info.PID > 0 {
			notef("watched by pid %d since %s\n", info.PID, info.StartedAt.Local().Format("2006-01-02 15:04"))
		}
	}
	if !rep.Valid {
		return &silentError{err: fmt.Errorf("%s is structurally invalid", path)}
	}
	return nil
}

func printStatus(path string, rep *runner.Report) {
	fmt.Println(ui.RenderCategory(path))
	width := 0
	for _, ts := range rep.Targets {
		if len(ts.Target) > width {
			width = len(ts.Target)
		}
	}
	for _, ts := range rep.Targets {
		marker := " "
		if ts.Target == rep.Next {
			marker = ui.RenderAccent(ui.IconNext)
		}
		fmt.Printf("%s %s  %s\n", marker, ui.PadRight(ts.Target, width), targetSummary(ts))
	}
	fmt.Println(ui.RenderSeparator())

	pending := 0
	for _, q := range rep.Questions {
		if q.Status.IsPending() {
			pending++
		}
	}
	fmt.Printf("%d question%s, %d pending\n", len(rep.Questions), plural(len(rep.Questions)), pending)
	if rep.AllComplete {
		fmt.Printf("%s all targets complete\n", ui.RenderPass(ui.IconPass))
	} else {
		fmt.Printf("next: %s\n", ui.RenderAccent(rep.Next))
	}
}

func targetSummary(ts workflow.TargetStatus) string {
	if ts.IsGate {
		if ts.Gate == nil {
			return ui.RenderAction("not run")
		}
		return fmt.Sprintf("%s %s", ui.RenderAction(string(ts.Gate.Status)),
			ui.RenderMuted(fmt.Sprintf("(%d blocker%s, %d warning%s)",
				ts.Gate.Issues, plural(ts.Gate.Issues), ts.Gate.Warnings, plural(ts.Gate.Warnings))))
	}
	s := ui.RenderAction(string(ts.Action))
	st := ts.State
	if st == nil {
		return s
	}
	var notes []string
	if st.Locked {
		notes = append(notes, "locked")
	}
	if st.HasPlaceholder {
		notes = append(notes, "placeholder")
	}
	if st.OpenUnanswered > 0 {
		notes = append(notes, fmt.Sprintf("%d unanswered", st.OpenUnanswered))
	}
	if st.Answered > 0 {
		notes = append(notes, fmt.Sprintf("%d answered", st.Answered))
	}
	if len(notes) > 0 {
		s += " " + ui.RenderMuted("("+strings.Join(notes, ", ")+")")
	}
	return s
}

// showSection renders one section's markdown, marker lines removed.
func showSection(ctx context.Context, path, id string, noPager bool) error {
	doc, err := readDocument(ctx, path)
	if err != nil {
		return err
	}
	sec, ok := doc.Section(id)
	if !ok {
		return fmt.Errorf("section %q not found in %s", id, path)
	}
	text := sectionMarkdown(doc, sec)

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"section":  id,
			"locked":   sec.Locked,
			"markdown": text,
		})
		return nil
	}
	return ui.ToPager(ui.RenderMarkdown(text), ui.PagerOptions{NoPager: noPager})
}

func sectionMarkdown(doc *document.Document, sec document.Section) string {
	var lines []string
	for _, line := range doc.Span(sec) {
		if markers.ContainsStructural(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

func init() {
	statusCmd.Flags().String("show", "", "Render the body of one section")
	statusCmd.Flags().Bool("no-pager", false, "Disable pager output")
	rootCmd.AddCommand(statusCmd)
}
