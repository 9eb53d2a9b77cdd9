package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

// Process exit codes.
const (
	exitOK      = 0
	exitBlocked = 1
	exitError   = 2
)

// errBlocked reports that the document is waiting on a human. The command
// has already printed why, so main prints nothing more.
var errBlocked = errors.New("blocked")

// silentError carries an exit code for a failure that was already reported
// on stdout (structural error listings, for example).
type silentError struct {
	err error
}

func (e *silentError) Error() string { return e.err.Error() }
func (e *silentError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errBlocked):
		return exitBlocked
	default:
		return exitError
	}
}

// reportError writes err to stderr, as {"error": ...} JSON in --json mode.
func reportError(err error) {
	var silent *silentError
	if errors.Is(err, errBlocked) || errors.As(err, &silent) {
		return
	}
	if jsonOutput {
		errObj := map[string]interface{}{"error": err.Error()}
		var list validation.ErrorList
		if errors.As(err, &list) {
			errObj["code"] = "structural_error"
			errObj["errors"] = list
		}
		encoder := json.NewEncoder(os.Stderr)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(errObj) // Best effort: the exit code still reports the failure
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// WarnError writes a warning message to stderr and returns.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
