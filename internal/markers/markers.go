// Package markers parses the HTML-comment marker syntax that carries a
// document's structure.
//
// The syntax is bit-exact and shared with the templates:
//
//	<!-- section:<id> -->
//	<!-- section_lock:<id> lock=(true|false) -->
//	<!-- subsection:<id> -->
//	<!-- table:<id> -->
//	<!-- PLACEHOLDER -->
//	<!-- workflow:order
//	<id>            (one per line, # comments ignored)
//	-->
//	<!-- review_gate_result:<gate_id> status=(passed|failed) issues=<n> warnings=<n> -->
//
// Lines inside fenced code blocks are never treated as markers.
package markers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

// Kind identifies a marker type.
type Kind string

const (
	KindSection    Kind = "section"
	KindLock       Kind = "section_lock"
	KindSubsection Kind = "subsection"
	KindTable      Kind = "table"
	KindGateResult Kind = "review_gate_result"
	KindOrder      Kind = "workflow:order"
)

// Placeholder is the sentinel that marks a section as not yet written.
const Placeholder = "<!-- PLACEHOLDER -->"

var (
	// candidateRe detects lines that look like a structural marker so that
	// malformed variants are reported instead of silently ignored.
	candidateRe = regexp.MustCompile(`^<!--\s*(section_lock|subsection|section|table|review_gate_result)\s*:`)

	sectionRe    = regexp.MustCompile(`^<!--\s*section:(\S+?)\s*-->$`)
	lockRe       = regexp.MustCompile(`^<!--\s*section_lock:(\S+?)\s+lock=(\S*?)\s*-->$`)
	subsectionRe = regexp.MustCompile(`^<!--\s*subsection:(\S+?)\s*-->$`)
	tableRe      = regexp.MustCompile(`^<!--\s*table:(\S+?)\s*-->$`)
	gateResultRe = regexp.MustCompile(`^<!--\s*review_gate_result:(\S+?)\s+status=(passed|failed)\s+issues=(\d+)\s+warnings=(\d+)\s*-->$`)
	orderStartRe = regexp.MustCompile(`^<!--\s*workflow:order\b(.*)$`)

	placeholderRe = regexp.MustCompile(`<!--\s*PLACEHOLDER\s*-->`)

	// structuralRe matches any structural marker opening anywhere in a line.
	structuralRe = regexp.MustCompile(`(?i)<!--\s*(section_lock|subsection|section|table|review_gate_result)\s*:|<!--\s*workflow:order`)

	idRe     = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	fenceRe  = regexp.MustCompile("^(```|~~~)")
	headerRe = regexp.MustCompile(`^#{1,6}\s`)
)

// Marker is one parsed single-line marker.
type Marker struct {
	Kind Kind
	ID   string
	Line int // 0-based

	// section_lock only. LockRaw is the literal value; Lock is valid only when
	// LockValid is true.
	LockRaw   string
	Lock      bool
	LockValid bool

	// review_gate_result only.
	Status   types.GateStatus
	Issues   int
	Warnings int
}

// OrderEntry is one id listed in a workflow order block.
type OrderEntry struct {
	ID   string
	Line int
}

// OrderBlock is a parsed <!-- workflow:order ... --> block.
type OrderBlock struct {
	Start      int
	End        int // line holding the closing -->, or len(lines)-1 when unterminated
	Terminated bool
	Entries    []OrderEntry
}

// Malformed is a line that looks like a marker but does not parse.
type Malformed struct {
	Kind   Kind
	Line   int
	Text   string
	Reason string
}

// Result is everything Scan found in a document.
type Result struct {
	Markers      []Marker
	Orders       []OrderBlock
	Malformed    []Malformed
	Placeholders []int
}

// ValidID reports whether id matches the section/subsection/table id pattern.
func ValidID(id string) bool {
	return idRe.MatchString(id)
}

// IsFence reports whether a line opens or closes a fenced code block.
func IsFence(line string) bool {
	return fenceRe.MatchString(strings.TrimSpace(line))
}

// IsHeading reports whether a line is a markdown ATX heading.
func IsHeading(line string) bool {
	return headerRe.MatchString(strings.TrimSpace(line))
}

// IsDivider reports whether a line is a section divider.
func IsDivider(line string) bool {
	return strings.TrimSpace(line) == "---"
}

// HasPlaceholder reports whether the placeholder token appears in the line.
func HasPlaceholder(line string) bool {
	return placeholderRe.MatchString(line)
}

// StripPlaceholder removes placeholder tokens from a line.
func StripPlaceholder(line string) string {
	return placeholderRe.ReplaceAllString(line, "")
}

// ContainsStructural reports whether text contains any structural marker
// syntax. Content carrying markers must never be written into a section body.
func ContainsStructural(text string) bool {
	return structuralRe.MatchString(text)
}

// Scan parses every marker in lines. It never fails; problems are reported
// in Result.Malformed for the validator to surface.
func Scan(lines []string) *Result {
	res := &Result{}
	inFence := false
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if IsFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if HasPlaceholder(line) {
			res.Placeholders = append(res.Placeholders, i)
		}
		if m := orderStartRe.FindStringSubmatch(line); m != nil {
			block := scanOrder(lines, i, m[1])
			res.Orders = append(res.Orders, block)
			i = block.End
			continue
		}
		kindMatch := candidateRe.FindStringSubmatch(line)
		if kindMatch == nil {
			continue
		}
		kind := Kind(kindMatch[1])
		mk, reason := parseMarker(kind, line, i)
		if reason != "" {
			res.Malformed = append(res.Malformed, Malformed{Kind: kind, Line: i, Text: line, Reason: reason})
			continue
		}
		res.Markers = append(res.Markers, mk)
	}
	return res
}

func parseMarker(kind Kind, line string, idx int) (Marker, string) {
	mk := Marker{Kind: kind, Line: idx}
	switch kind {
	case KindSection, KindSubsection, KindTable:
		re := map[Kind]*regexp.Regexp{KindSection: sectionRe, KindSubsection: subsectionRe, KindTable: tableRe}[kind]
		m := re.FindStringSubmatch(line)
		if m == nil {
			return mk, fmt.Sprintf("expected <!-- %s:<id> -->", kind)
		}
		if !ValidID(m[1]) {
			return mk, fmt.Sprintf("invalid %s id %q (expected lowercase letters, digits, '_' or '-')", kind, m[1])
		}
		mk.ID = m[1]
	case KindLock:
		m := lockRe.FindStringSubmatch(line)
		if m == nil {
			return mk, "expected <!-- section_lock:<id> lock=(true|false) -->"
		}
		mk.ID = m[1]
		mk.LockRaw = m[2]
		switch m[2] {
		case "true":
			mk.Lock, mk.LockValid = true, true
		case "false":
			mk.Lock, mk.LockValid = false, true
		}
	case KindGateResult:
		m := gateResultRe.FindStringSubmatch(line)
		if m == nil {
			return mk, "expected <!-- review_gate_result:<gate_id> status=(passed|failed) issues=<n> warnings=<n> -->"
		}
		mk.ID = m[1]
		mk.Status = types.GateStatus(m[2])
		mk.Issues, _ = strconv.Atoi(m[3])
		mk.Warnings, _ = strconv.Atoi(m[4])
	}
	return mk, ""
}

// scanOrder reads a workflow order block starting at line start. rest is
// whatever followed "workflow:order" on the opening line.
func scanOrder(lines []string, start int, rest string) OrderBlock {
	block := OrderBlock{Start: start, End: len(lines) - 1}
	addTokens := func(text string, line int) {
		if idx := strings.Index(text, "#"); idx >= 0 {
			text = text[:idx]
		}
		for _, tok := range strings.Fields(text) {
			block.Entries = append(block.Entries, OrderEntry{ID: tok, Line: line})
		}
	}
	if before, _, found := strings.Cut(rest, "-->"); found {
		addTokens(before, start)
		block.End = start
		block.Terminated = true
		return block
	}
	addTokens(rest, start)
	for i := start + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if before, _, found := strings.Cut(line, "-->"); found {
			addTokens(before, i)
			block.End = i
			block.Terminated = true
			return block
		}
		addTokens(line, i)
	}
	return block
}

// Of returns the markers of one kind, in document order.
func (r *Result) Of(kind Kind) []Marker {
	var out []Marker
	for _, m := range r.Markers {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// FormatSection renders a section marker.
func FormatSection(id string) string {
	return "<!-- section:" + id + " -->"
}

// FormatLock renders a lock marker.
func FormatLock(id string, locked bool) string {
	return fmt.Sprintf("<!-- section_lock:%s lock=%t -->", id, locked)
}

// FormatSubsection renders a subsection marker.
func FormatSubsection(id string) string {
	return "<!-- subsection:" + id + " -->"
}

// FormatTable renders a table marker.
func FormatTable(id string) string {
	return "<!-- table:" + id + " -->"
}

// FormatGateResult renders a persisted review gate result.
func FormatGateResult(rec types.GateRecord) string {
	return fmt.Sprintf("<!-- review_gate_result:%s status=%s issues=%d warnings=%d -->",
		types.GateName(rec.GateID), rec.Status, rec.Issues, rec.Warnings)
}
