// Package ui renders orchestrator CLI output for terminals.
// Colors follow the Ayu theme with adaptive light/dark variants.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconNext = "→"
)

const SeparatorLight = "──────────────────────────────────────────"

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderCategory renders a header in uppercase with the accent color.
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color.
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderCheck renders the icon for a completion check. Failed non-blocking
// checks are warnings.
func RenderCheck(passed, blocking bool) string {
	switch {
	case passed:
		return PassStyle.Render(IconPass)
	case blocking:
		return FailStyle.Render(IconFail)
	default:
		return WarnStyle.Render(IconWarn)
	}
}

// RenderAction colors a workflow action or outcome by how much attention it
// needs from a human.
func RenderAction(action string) string {
	switch action {
	case "skip", "complete", "passed", "progressed":
		return PassStyle.Render(action)
	case "blocked", "failed":
		return FailStyle.Render(action)
	case "generate_questions", "integrate_answers", "review_gate":
		return AccentStyle.Render(action)
	case "not run":
		return MutedStyle.Render(action)
	default:
		return WarnStyle.Render(action)
	}
}

// RenderQuestionStatus colors a ledger status cell.
func RenderQuestionStatus(status string) string {
	switch status {
	case "Resolved":
		return PassStyle.Render(status)
	case "Deferred":
		return MutedStyle.Render(status)
	default:
		return WarnStyle.Render(status)
	}
}

// PadRight pads s with spaces to width visible columns, ignoring ANSI codes.
func PadRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
