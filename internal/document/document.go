// Package document holds the in-memory markdown document and the structural
// views (sections, subsections, tables) derived from its markers.
//
// A Document is a value: mutating operations work on a Clone so a failed
// step never leaves a half-edited document behind.
package document

import (
	"fmt"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
)

// Document is an ordered sequence of lines.
type Document struct {
	lines []string
}

// New creates a document from lines. The slice is copied.
func New(lines []string) *Document {
	cp := make([]string, len(lines))
	copy(cp, lines)
	return &Document{lines: cp}
}

// Parse splits markdown text into a document. CRLF line endings are
// normalized and a single trailing newline is not treated as an extra line.
func Parse(text string) *Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return &Document{}
	}
	return &Document{lines: strings.Split(text, "\n")}
}

// String renders the document with a trailing newline.
func (d *Document) String() string {
	if len(d.lines) == 0 {
		return ""
	}
	return strings.Join(d.lines, "\n") + "\n"
}

// Lines returns a copy of the document lines.
func (d *Document) Lines() []string {
	cp := make([]string, len(d.lines))
	copy(cp, d.lines)
	return cp
}

// Len returns the number of lines.
func (d *Document) Len() int { return len(d.lines) }

// Line returns line i (0-based).
func (d *Document) Line(i int) string { return d.lines[i] }

// Clone returns an independent copy.
func (d *Document) Clone() *Document {
	return New(d.lines)
}

// Equal reports whether two documents have identical content.
func (d *Document) Equal(other *Document) bool {
	if other == nil || len(d.lines) != len(other.lines) {
		return false
	}
	for i := range d.lines {
		if d.lines[i] != other.lines[i] {
			return false
		}
	}
	return true
}

// Splice replaces lines [start, end) with repl.
func (d *Document) Splice(start, end int, repl []string) {
	out := make([]string, 0, len(d.lines)-(end-start)+len(repl))
	out = append(out, d.lines[:start]...)
	out = append(out, repl...)
	out = append(out, d.lines[end:]...)
	d.lines = out
}

// SetLine overwrites a single line.
func (d *Document) SetLine(i int, s string) {
	d.lines[i] = s
}

// Scan parses the document's markers.
func (d *Document) Scan() *markers.Result {
	return markers.Scan(d.lines)
}

// Sections returns every section in document order.
func (d *Document) Sections() []Section {
	return sections(d.lines, d.Scan())
}

// Section returns the first section with the given id.
func (d *Document) Section(id string) (Section, bool) {
	for _, s := range d.Sections() {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SectionIDs returns section ids in declaration order, first occurrence only.
func (d *Document) SectionIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range d.Sections() {
		if !seen[s.ID] {
			seen[s.ID] = true
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Body returns a copy of the body lines of a section.
func (d *Document) Body(s Section) []string {
	cp := make([]string, s.BodyEnd-s.BodyStart)
	copy(cp, d.lines[s.BodyStart:s.BodyEnd])
	return cp
}

// Span returns a copy of the full span of a section, marker included.
func (d *Document) Span(s Section) []string {
	cp := make([]string, s.End-s.Start)
	copy(cp, d.lines[s.Start:s.End])
	return cp
}

// ReplaceBody replaces the body of a section. The marker, heading block and
// trailing divider are preserved; the new body is framed by single blank lines.
func (d *Document) ReplaceBody(id string, body []string) error {
	s, ok := d.Section(id)
	if !ok {
		return fmt.Errorf("section %q not found", id)
	}
	d.Splice(s.BodyStart, s.BodyEnd, frame(body))
	return nil
}

// ReplaceSubsectionBody replaces the content of one subsection.
func (d *Document) ReplaceSubsectionBody(sectionID, subID string, body []string) error {
	s, ok := d.Section(sectionID)
	if !ok {
		return fmt.Errorf("section %q not found", sectionID)
	}
	sub, ok := s.Subsection(subID)
	if !ok {
		return fmt.Errorf("subsection %q not found in section %q", subID, sectionID)
	}
	d.Splice(sub.BodyStart, sub.End, frame(body))
	return nil
}

func frame(body []string) []string {
	trimmed := trimBlank(body)
	out := make([]string, 0, len(trimmed)+2)
	out = append(out, "")
	out = append(out, trimmed...)
	out = append(out, "")
	return out
}

// trimBlank drops leading and trailing blank lines.
func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// SplitText splits replacement text into lines.
func SplitText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(strings.Trim(text, "\n"), "\n")
}
