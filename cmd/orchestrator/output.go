package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ui"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(exitError)
	}
}

// printStructuralErrors lists errs under a document heading.
func printStructuralErrors(path string, errs []*validation.StructuralError) {
	if len(errs) == 0 {
		fmt.Printf("%s %s\n", ui.RenderPass(ui.IconPass), path)
		return
	}
	fmt.Printf("%s %s: %d structural error(s)\n", ui.RenderFail(ui.IconFail), path, len(errs))
	for _, e := range errs {
		fmt.Printf("  %s\n", e.Error())
	}
}

// plural is "s" unless n is 1.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}

// notef prints a non-essential status line to stderr.
func notef(format string, args ...interface{}) {
	if debug.IsQuiet() || jsonOutput {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
