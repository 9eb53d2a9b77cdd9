package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:     "validate <document>...",
	GroupID: "workflow",
	Short:   "Check the structure of one or more documents",
	Long: `Checks section, lock, table and workflow markers of each document. Documents
are read in parallel under a shared lock and never modified.

Exits 2 when any document has structural errors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateDocuments(rootCtx, args)
	},
}

type validateReport struct {
	Document string                        `json:"document"`
	Valid    bool                          `json:"valid"`
	Errors   []*validation.StructuralError `json:"errors"`
	Err      string                        `json:"error,omitempty"`
}

func nonNilErrors(errs []*validation.StructuralError) []*validation.StructuralError {
	if errs == nil {
		return []*validation.StructuralError{}
	}
	return errs
}

// checkDocuments validates every document concurrently. A document that
// cannot be read is reported in its slot rather than aborting the others.
func checkDocuments(ctx context.Context, args []string) ([]validateReport, error) {
	// One inspector serves every document.
	r, err := newInspector("")
	if err != nil {
		return nil, err
	}
	reports := make([]validateReport, len(args))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, arg := range args {
		g.Go(func() error {
			rep := validateReport{Document: arg, Errors: []*validation.StructuralError{}}
			defer func() { reports[i] = rep }()

			path, err := docPath(arg)
			if err != nil {
				rep.Err = err.Error()
				return nil
			}
			doc, err := readDocument(ctx, path)
			if err != nil {
				rep.Err = err.Error()
				return nil
			}
			rep.Errors = nonNilErrors(validation.Validate(doc, r.ValidationOptions(doc)))
			rep.Valid = len(rep.Errors) == 0
			return nil
		})
	}
	_ = g.Wait() // workers record failures in their report
	return reports, nil
}

func validateDocuments(ctx context.Context, args []string) error {
	reports, err := checkDocuments(ctx, args)
	if err != nil {
		return err
	}

	failed := 0
	for _, rep := range reports {
		if !rep.Valid {
			failed++
		}
	}
	if jsonOutput {
		outputJSON(reports)
	} else {
		for _, rep := range reports {
			if rep.Err != "" {
				fmt.Printf("Error: %s: %s\n", rep.Document, rep.Err)
				continue
			}
			printStructuralErrors(rep.Document, rep.Errors)
		}
	}
	if failed > 0 {
		return &silentError{err: fmt.Errorf("%d of %d document%s failed validation", failed, len(reports), plural(len(reports)))}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
