package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/docstore"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/timeparsing"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ui"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

var questionsCmd = &cobra.Command{
	Use:     "questions",
	GroupID: "workflow",
	Short:   "List, add, answer and defer open questions",
}

var questionsListCmd = &cobra.Command{
	Use:   "list <document>",
	Short: "List rows of the open questions table",
	Long: `Lists questions in id order.

--since accepts a date (2025-01-31), a compact duration (3d, 2w, -1m) or a
phrase such as "last monday"; questions dated before it are hidden.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, _ := cmd.Flags().GetString("section")
		status, _ := cmd.Flags().GetString("status")
		since, _ := cmd.Flags().GetString("since")

		filter, err := newQuestionFilter(section, status, since, time.Now())
		if err != nil {
			return err
		}
		path, err := docPath(args[0])
		if err != nil {
			return err
		}
		doc, err := readDocument(rootCtx, path)
		if err != nil {
			return err
		}
		l, err := ledger.Load(doc)
		if err != nil {
			return err
		}
		qs := filter.apply(l.All())
		if jsonOutput {
			outputJSON(qs)
			return nil
		}
		printQuestions(qs)
		return nil
	},
}

var questionsAddCmd = &cobra.Command{
	Use:   "add <document> <section> <question>",
	Short: "Add a question for a section",
	Long: `Adds an Open question. A question whose text matches an existing one for the
same section is not added again; its id is reported instead.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, text := args[1], args[2]
		var id string
		var inserted bool
		res, err := editLedger(rootCtx, args[0], func(doc *document.Document, l *ledger.Ledger) error {
			if _, ok := doc.Section(section); !ok || types.IsReviewGate(section) {
				return fmt.Errorf("section %q not found", section)
			}
			if markers.ContainsStructural(text) {
				return errMarkerText
			}
			var err error
			id, inserted, err = l.Insert(types.Question{Text: text, Target: section})
			return err
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"id": id, "inserted": inserted, "written": res.Written, "backup": res.Backup})
			return nil
		}
		if inserted {
			fmt.Printf("%s added %s for %s\n", ui.RenderPass(ui.IconPass), id, section)
		} else {
			fmt.Printf("%s already asked as %s\n", ui.RenderMuted(ui.IconSkip), id)
		}
		return nil
	},
}

var questionsAnswerCmd = &cobra.Command{
	Use:   "answer <document> <question-id> [answer]",
	Short: "Record an answer",
	Long: `Records an answer for a question. Without an answer argument an interactive
form is shown when stdin is a terminal.

The next run integrates answered questions into their section.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.ToUpper(args[1])
		answer := ""
		if len(args) == 3 {
			answer = args[2]
		}
		res, err := editLedger(rootCtx, args[0], func(_ *document.Document, l *ledger.Ledger) error {
			q, ok := l.Get(id)
			if !ok {
				return fmt.Errorf("question %s not found", id)
			}
			if answer == "" {
				a, err := promptAnswer(q)
				if err != nil {
					return err
				}
				answer = a
			}
			if markers.ContainsStructural(answer) {
				return errMarkerText
			}
			return l.SetAnswer(id, answer)
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"id": id, "answer": answer, "written": res.Written, "backup": res.Backup})
			return nil
		}
		fmt.Printf("%s answered %s\n", ui.RenderPass(ui.IconPass), id)
		return nil
	},
}

var questionsDeferCmd = &cobra.Command{
	Use:   "defer <document> <question-id>",
	Short: "Mark a question Deferred",
	Long: `Deferred questions still block their section, and fail completion only with
--validate --strict.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.ToUpper(args[1])
		res, err := editLedger(rootCtx, args[0], func(_ *document.Document, l *ledger.Ledger) error {
			return l.Defer(id)
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"id": id, "status": types.StatusDeferred, "written": res.Written})
			return nil
		}
		fmt.Printf("%s deferred %s\n", ui.RenderMuted(ui.IconSkip), id)
		return nil
	},
}

var errMarkerText = errors.New("text must not contain structural marker syntax")

// editLedger applies fn to the document's ledger under the exclusive lock,
// renders the ledger back into a copy, re-validates and saves it.
func editLedger(ctx context.Context, arg string, fn func(*document.Document, *ledger.Ledger) error) (saveResult, error) {
	path, err := docPath(arg)
	if err != nil {
		return saveResult{}, err
	}
	r, err := newInspector(path)
	if err != nil {
		return saveResult{}, err
	}

	var res saveResult
	err = lockfile.WithExclusive(ctx, path, lockfile.DefaultTimeout, func() error {
		doc, err := docstore.Load(path)
		if err != nil {
			return err
		}
		if err := validation.AsError(validation.Validate(doc, r.ValidationOptions(doc))); err != nil {
			return fmt.Errorf("document is structurally invalid: %w", err)
		}
		l, err := ledger.Load(doc)
		if err != nil {
			return err
		}
		if err := fn(doc, l); err != nil {
			return err
		}
		if !l.Changed() {
			return nil
		}
		next := doc.Clone()
		if err := l.Render(next); err != nil {
			return err
		}
		if err := validation.AsError(validation.Validate(next, r.ValidationOptions(next))); err != nil {
			return fmt.Errorf("edit rejected: %w", err)
		}
		res, err = save(path, next, false)
		return err
	})
	if err == nil && res.Written {
		debug.LogEvent("LEDGER_EDIT", "", r.Source, "")
	}
	return res, err
}

// promptAnswer asks for an answer with a huh form.
func promptAnswer(q types.Question) (string, error) {
	if !ui.IsTerminal() || ui.IsAgentMode() {
		return "", errors.New("answer required (no terminal for interactive input)")
	}
	var answer string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(q.ID+" · "+q.Target).
				Description(q.Text),
			huh.NewText().
				Title("Answer").
				Value(&answer).
				Validate(func(s string) error {
					if types.IsAnswerSentinel(s) {
						return errors.New("answer is empty")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errors.New("cancelled")
		}
		return "", err
	}
	// Table cells are single line.
	return strings.Join(strings.Fields(answer), " "), nil
}

// questionFilter narrows a ledger listing.
type questionFilter struct {
	section string
	status  types.QuestionStatus
	since   time.Time
}

func newQuestionFilter(section, status, since string, now time.Time) (questionFilter, error) {
	f := questionFilter{section: section}
	if status != "" {
		st, err := types.ParseQuestionStatus(status)
		if err != nil {
			return f, err
		}
		f.status = st
	}
	if since != "" {
		t, err := timeparsing.ParseSince(since, now)
		if err != nil {
			return f, fmt.Errorf("invalid --since: %w", err)
		}
		f.since = t
	}
	return f, nil
}

// apply keeps matching questions. Dates are days, so --since compares
// against the start of its day; undated rows are kept.
func (f questionFilter) apply(qs []types.Question) []types.Question {
	out := []types.Question{}
	var sinceDay string
	if !f.since.IsZero() {
		sinceDay = f.since.Format("2006-01-02")
	}
	for _, q := range qs {
		if f.section != "" && q.Target != f.section {
			continue
		}
		if f.status != "" && q.Status != f.status {
			continue
		}
		if sinceDay != "" && q.Date != "" && q.Date < sinceDay {
			continue
		}
		out = append(out, q)
	}
	return out
}

func printQuestions(qs []types.Question) {
	if len(qs) == 0 {
		fmt.Println("No questions.")
		return
	}
	for _, q := range qs {
		fmt.Printf("%s  %s  %s  %s\n",
			ui.RenderAccent(q.ID),
			ui.PadRight(ui.RenderQuestionStatus(string(q.Status)), 8),
			ui.RenderMuted(q.Date),
			ui.RenderMuted(q.Target))
		fmt.Printf("    %s\n", q.Text)
		if q.IsAnswered() {
			fmt.Printf("    %s %s\n", ui.RenderPass(ui.IconNext), q.Answer)
		}
	}
}

func init() {
	questionsListCmd.Flags().String("section", "", "Only questions targeting this section")
	questionsListCmd.Flags().String("status", "", "Only questions with this status (Open, Deferred, Resolved)")
	questionsListCmd.Flags().String("since", "", "Only questions dated on or after this time")

	questionsCmd.AddCommand(questionsListCmd, questionsAddCmd, questionsAnswerCmd, questionsDeferCmd)
	rootCmd.AddCommand(questionsCmd)
}
