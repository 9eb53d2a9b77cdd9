package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func init() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions:
// NO_COLOR always wins, then CLICOLOR_FORCE, then CLICOLOR=0, then TTY.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if f := os.Getenv("CLICOLOR_FORCE"); f != "" && f != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// IsAgentMode reports whether output is being read by another program
// driving the CLI, in which case decoration is skipped.
func IsAgentMode() bool {
	return os.Getenv("ORCH_AGENT_MODE") == "1"
}

// DisableColor forces plain output, e.g. for --json.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
