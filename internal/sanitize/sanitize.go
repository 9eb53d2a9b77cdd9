// Package sanitize cleans collaborator output before it is written into a
// section. Collaborator text is untrusted: anything carrying structural
// marker syntax is rejected outright rather than repaired.
package sanitize

import (
	"errors"
	"strings"
	"unicode"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

var (
	// ErrMarkers is returned when content contains structural marker syntax.
	ErrMarkers = errors.New("content contains structural marker syntax")
	// ErrEmpty is returned when nothing is left after cleaning.
	ErrEmpty = errors.New("content is empty after sanitizing")
)

// Sanitize cleans raw text for a section using the section's output format.
func Sanitize(raw string, cfg types.HandlerConfig) ([]string, error) {
	return SanitizeAs(raw, cfg, cfg.OutputFormat)
}

// SanitizeAs cleans raw text and shapes it to format. Placeholder tokens are
// dropped from the text; when the section's mode asks follow-up questions a
// single bare placeholder line is appended so the section is asked again.
func SanitizeAs(raw string, cfg types.HandlerConfig, format types.OutputFormat) ([]string, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if markers.ContainsStructural(text) {
		return nil, ErrMarkers
	}

	lines := unwrapFence(strings.Split(text, "\n"))

	var out []string
	seen := make(map[string]bool)
	placeholder := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if markers.HasPlaceholder(line) {
			placeholder = true
			line = strings.TrimRight(markers.StripPlaceholder(line), " \t")
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		if containsAny(line, cfg.SanitizeRemove) {
			continue
		}
		if markers.IsHeading(line) && isPreserved(line, cfg.PreserveHeaders) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if cfg.Dedupe && hasWord(trimmed) && !markers.IsFence(trimmed) {
			if seen[trimmed] {
				continue
			}
			seen[trimmed] = true
		}
		out = append(out, line)
	}

	out = collapseBlank(out)
	if format == types.FormatBullets {
		out = bulletize(out)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	if placeholder && cfg.Mode.FollowUpQuestions() {
		out = append(out, "", markers.Placeholder)
	}
	return out, nil
}

// unwrapFence strips a single code fence wrapping the whole text.
func unwrapFence(lines []string) []string {
	first, last := -1, -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return lines
	}
	closing := strings.TrimSpace(lines[last])
	if !markers.IsFence(lines[first]) || (closing != "```" && closing != "~~~") {
		return lines
	}
	fences := 0
	for _, l := range lines[first : last+1] {
		if markers.IsFence(l) {
			fences++
		}
	}
	if fences != 2 {
		return lines
	}
	return lines[first+1 : last]
}

// hasWord reports whether s has a letter or digit. Pure punctuation lines
// such as table separators are never deduplicated.
func hasWord(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0
}

func containsAny(line string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(line, n) {
			return true
		}
	}
	return false
}

func headingText(line string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#")))
}

func isPreserved(line string, headers []string) bool {
	h := headingText(line)
	for _, p := range headers {
		if headingText(p) == h {
			return true
		}
	}
	return false
}

// collapseBlank trims leading and trailing blank lines and squeezes runs of
// blank lines to one.
func collapseBlank(lines []string) []string {
	var out []string
	blank := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, l)
	}
	return out
}

// bulletize prefixes plain prose lines with "- ". Existing list items,
// headings, table rows and indented continuation lines are kept as is.
func bulletize(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case t == "",
			markers.IsHeading(t),
			strings.HasPrefix(t, "|"),
			strings.HasPrefix(l, " "), strings.HasPrefix(l, "\t"),
			isListItem(t):
			out = append(out, l)
		default:
			out = append(out, "- "+t)
		}
	}
	return out
}

func isListItem(t string) bool {
	if strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") || strings.HasPrefix(t, "+ ") {
		return true
	}
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(t) && (t[i] == '.' || t[i] == ')') && t[i+1] == ' '
}
