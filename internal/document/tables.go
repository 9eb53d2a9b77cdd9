package document

import (
	"regexp"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
)

// Row is one pipe-delimited table line.
type Row struct {
	Line  int
	Cells []string
}

// Table is a markdown table introduced by a table marker.
type Table struct {
	ID         string
	MarkerLine int

	// HeaderLine is -1 when no pipe row follows the marker.
	HeaderLine int
	Header     []string
	// SeparatorLine is -1 when the header is not followed by a |---| row.
	SeparatorLine int
	Rows          []Row

	// End is the line after the last table row (exclusive).
	End int
}

// IsQuestionsTable reports whether a table id holds question ledger rows.
func IsQuestionsTable(id string) bool {
	return id == "open_questions" || strings.HasSuffix(id, "_questions")
}

var separatorRe = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)

// Tables returns every marked table in document order.
func (d *Document) Tables() []Table {
	return tables(d.lines, d.Scan())
}

// Table returns the first table with the given id.
func (d *Document) Table(id string) (Table, bool) {
	for _, t := range d.Tables() {
		if t.ID == id {
			return t, true
		}
	}
	return Table{}, false
}

// HasTableIn reports whether a table marker lies in [start, end).
func (d *Document) HasTableIn(start, end int) bool {
	for _, t := range d.Tables() {
		if t.MarkerLine >= start && t.MarkerLine < end {
			return true
		}
	}
	return false
}

// SectionAt returns the section whose span contains line.
func (d *Document) SectionAt(line int) (Section, bool) {
	for _, s := range d.Sections() {
		if line >= s.Start && line < s.End {
			return s, true
		}
	}
	return Section{}, false
}

func tables(lines []string, res *markers.Result) []Table {
	var out []Table
	for _, m := range res.Of(markers.KindTable) {
		t := Table{ID: m.ID, MarkerLine: m.Line, HeaderLine: -1, SeparatorLine: -1, End: m.Line + 1}
		i := m.Line + 1
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i < len(lines) && isPipeRow(lines[i]) {
			t.HeaderLine = i
			t.Header = SplitRow(lines[i])
			i++
			if i < len(lines) && separatorRe.MatchString(strings.TrimSpace(lines[i])) {
				t.SeparatorLine = i
				i++
			}
			for i < len(lines) && isPipeRow(lines[i]) {
				t.Rows = append(t.Rows, Row{Line: i, Cells: SplitRow(lines[i])})
				i++
			}
			t.End = i
		}
		out = append(out, t)
	}
	return out
}

func isPipeRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

// SplitRow splits a table line into trimmed cells. Escaped pipes (\|) stay
// inside their cell and are unescaped.
func SplitRow(line string) []string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "|")
	if strings.HasSuffix(t, "|") && !strings.HasSuffix(t, `\|`) {
		t = t[:len(t)-1]
	}
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(t); i++ {
		if t[i] == '\\' && i+1 < len(t) && t[i+1] == '|' {
			cur.WriteByte('|')
			i++
			continue
		}
		if t[i] == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(t[i])
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return cells
}

// FormatRow renders cells as a table line, escaping pipes and newlines.
func FormatRow(cells []string) string {
	var b strings.Builder
	b.WriteString("|")
	for _, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		c = strings.ReplaceAll(c, "\n", " ")
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(c))
		b.WriteString(" |")
	}
	return b.String()
}

// FormatSeparator renders a |---| row for n columns.
func FormatSeparator(n int) string {
	return "|" + strings.Repeat("---|", n)
}
