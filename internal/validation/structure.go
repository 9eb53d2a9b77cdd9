package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/markers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

// ErrorKind classifies a structural error.
type ErrorKind string

const (
	KindMalformedMarker     ErrorKind = "MalformedMarkerError"
	KindDuplicateSection    ErrorKind = "DuplicateSectionError"
	KindOrphanLock          ErrorKind = "OrphanLockError"
	KindInvalidLockValue    ErrorKind = "InvalidLockValueError"
	KindDuplicateTable      ErrorKind = "DuplicateTableError"
	KindTableSchema         ErrorKind = "TableSchemaError"
	KindTableRow            ErrorKind = "TableRowError"
	KindQuestionStatus      ErrorKind = "QuestionStatusError"
	KindOrphanSubsection    ErrorKind = "OrphanSubsectionError"
	KindDuplicateSubsection ErrorKind = "DuplicateSubsectionError"
	KindMissingSubsection   ErrorKind = "MissingSubsectionError"
	KindWorkflowOrder       ErrorKind = "WorkflowOrderError"
	KindUnknownTarget       ErrorKind = "UnknownTargetError"
	KindDuplicateTarget     ErrorKind = "DuplicateTargetError"
)

// StructuralError is a violation of the document's marker or table
// structure. Line numbers are 1-based.
type StructuralError struct {
	Kind     ErrorKind `json:"kind"`
	ID       string    `json:"id,omitempty"`
	Lines    []int     `json:"lines,omitempty"`
	Expected []string  `json:"expected,omitempty"`
	Actual   []string  `json:"actual,omitempty"`
	Msg      string    `json:"message"`
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if len(e.Lines) > 0 {
		parts := make([]string, len(e.Lines))
		for i, l := range e.Lines {
			parts[i] = strconv.Itoa(l)
		}
		b.WriteString(" (line ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if len(e.Expected) > 0 || len(e.Actual) > 0 {
		fmt.Fprintf(&b, " (expected %q, got %q)", strings.Join(e.Expected, " | "), strings.Join(e.Actual, " | "))
	}
	return b.String()
}

// ErrorList is a non-empty set of structural errors returned as one error.
type ErrorList []*StructuralError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no structural errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d structural errors:\n  %s", len(l), strings.Join(msgs, "\n  "))
}

// AsError returns errs as an error, or nil when there are none.
func AsError(errs []*StructuralError) error {
	if len(errs) == 0 {
		return nil
	}
	return ErrorList(errs)
}

// Options carries the configuration-dependent parts of validation.
type Options struct {
	// RequiredSubsections maps a section id to the subsection ids its handler
	// config requires.
	RequiredSubsections map[string][]string
	// QuestionSchema selects which questions table header is accepted.
	QuestionSchema SchemaVariant
	// TableSchemas maps other table ids to their exact header.
	TableSchemas map[string][]string
}

// Validate runs every structural check over the document and returns all
// violations, ordered by first line. It does not modify the document.
func Validate(doc *document.Document, opts Options) []*StructuralError {
	lines := doc.Lines()
	res := markers.Scan(lines)

	var errs []*StructuralError
	errs = append(errs, checkMalformed(res)...)
	errs = append(errs, checkSections(res)...)
	errs = append(errs, checkLocks(res)...)
	errs = append(errs, checkTables(doc, opts)...)
	errs = append(errs, checkSubsections(doc, res, opts)...)
	errs = append(errs, checkWorkflowOrder(res)...)

	sort.SliceStable(errs, func(i, j int) bool {
		return firstLine(errs[i]) < firstLine(errs[j])
	})
	return errs
}

func firstLine(e *StructuralError) int {
	if len(e.Lines) == 0 {
		return 0
	}
	return e.Lines[0]
}

func checkMalformed(res *markers.Result) []*StructuralError {
	var errs []*StructuralError
	for _, m := range res.Malformed {
		errs = append(errs, &StructuralError{
			Kind:  KindMalformedMarker,
			Lines: []int{m.Line + 1},
			Msg:   fmt.Sprintf("malformed %s marker %q: %s", m.Kind, m.Text, m.Reason),
		})
	}
	return errs
}

// checkSections reports every duplicated section id with all of its lines.
func checkSections(res *markers.Result) []*StructuralError {
	return duplicates(res.Of(markers.KindSection), KindDuplicateSection, "section")
}

func duplicates(ms []markers.Marker, kind ErrorKind, what string) []*StructuralError {
	lines := make(map[string][]int)
	var order []string
	for _, m := range ms {
		if _, ok := lines[m.ID]; !ok {
			order = append(order, m.ID)
		}
		lines[m.ID] = append(lines[m.ID], m.Line+1)
	}
	var errs []*StructuralError
	for _, id := range order {
		if len(lines[id]) > 1 {
			errs = append(errs, &StructuralError{
				Kind:  kind,
				ID:    id,
				Lines: lines[id],
				Msg:   fmt.Sprintf("duplicate %s marker %q appears %d times", what, id, len(lines[id])),
			})
		}
	}
	return errs
}

func checkLocks(res *markers.Result) []*StructuralError {
	sections := make(map[string]bool)
	for _, m := range res.Of(markers.KindSection) {
		sections[m.ID] = true
	}
	var errs []*StructuralError
	for _, m := range res.Of(markers.KindLock) {
		if !sections[m.ID] {
			errs = append(errs, &StructuralError{
				Kind:  KindOrphanLock,
				ID:    m.ID,
				Lines: []int{m.Line + 1},
				Msg:   fmt.Sprintf("lock marker references unknown section %q", m.ID),
			})
		}
		if !m.LockValid {
			errs = append(errs, &StructuralError{
				Kind:     KindInvalidLockValue,
				ID:       m.ID,
				Lines:    []int{m.Line + 1},
				Expected: []string{"true", "false"},
				Actual:   []string{m.LockRaw},
				Msg:      fmt.Sprintf("lock value for %q must be true or false", m.ID),
			})
		}
	}
	return errs
}

func checkTables(doc *document.Document, opts Options) []*StructuralError {
	res := doc.Scan()
	errs := duplicates(res.Of(markers.KindTable), KindDuplicateTable, "table")

	for _, t := range doc.Tables() {
		if t.HeaderLine < 0 {
			errs = append(errs, &StructuralError{
				Kind:  KindTableSchema,
				ID:    t.ID,
				Lines: []int{t.MarkerLine + 1},
				Msg:   fmt.Sprintf("table %q has no header row", t.ID),
			})
			continue
		}

		var expected [][]string
		switch {
		case document.IsQuestionsTable(t.ID):
			expected = opts.QuestionSchema.Headers()
		case opts.TableSchemas[t.ID] != nil:
			expected = [][]string{opts.TableSchemas[t.ID]}
		}
		if len(expected) > 0 && !matchesAny(t.Header, expected) {
			errs = append(errs, &StructuralError{
				Kind:     KindTableSchema,
				ID:       t.ID,
				Lines:    []int{t.HeaderLine + 1},
				Expected: closestSchema(t.Header, expected),
				Actual:   t.Header,
				Msg:      fmt.Sprintf("table %q header does not match the expected columns and order", t.ID),
			})
		}

		width := len(t.Header)
		if t.SeparatorLine >= 0 {
			if n := len(document.SplitRow(doc.Line(t.SeparatorLine))); n != width {
				errs = append(errs, rowWidthError(t.ID, t.SeparatorLine, width, n))
			}
		}
		for _, row := range t.Rows {
			if len(row.Cells) != width {
				errs = append(errs, rowWidthError(t.ID, row.Line, width, len(row.Cells)))
			}
		}

		if document.IsQuestionsTable(t.ID) {
			if col := statusColumn(t.Header); col >= 0 {
				for _, row := range t.Rows {
					if col >= len(row.Cells) {
						continue
					}
					if _, err := types.ParseQuestionStatus(row.Cells[col]); err != nil {
						errs = append(errs, &StructuralError{
							Kind:     KindQuestionStatus,
							ID:       t.ID,
							Lines:    []int{row.Line + 1},
							Expected: []string{string(types.StatusOpen), string(types.StatusDeferred), string(types.StatusResolved)},
							Actual:   []string{row.Cells[col]},
							Msg:      err.Error(),
						})
					}
				}
			}
		}
	}
	return errs
}

func rowWidthError(id string, line, want, got int) *StructuralError {
	return &StructuralError{
		Kind:  KindTableRow,
		ID:    id,
		Lines: []int{line + 1},
		Msg:   fmt.Sprintf("table %q row has %d cells, header has %d", id, got, want),
	}
}

// closestSchema picks the candidate with the header's width so the error
// names the schema the author most likely meant.
func closestSchema(header []string, candidates [][]string) []string {
	for _, c := range candidates {
		if len(c) == len(header) {
			return c
		}
	}
	return candidates[0]
}

func matchesAny(header []string, candidates [][]string) bool {
	for _, c := range candidates {
		if equalColumns(header, c) {
			return true
		}
	}
	return false
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkSubsections(doc *document.Document, res *markers.Result, opts Options) []*StructuralError {
	var errs []*StructuralError
	secs := doc.Sections()

	owner := func(line int) (document.Section, bool) {
		for _, s := range secs {
			if line >= s.Start && line < s.End {
				return s, true
			}
		}
		return document.Section{}, false
	}

	perSection := make(map[string][]markers.Marker)
	var sectionOrder []string
	for _, m := range res.Of(markers.KindSubsection) {
		s, ok := owner(m.Line)
		if !ok {
			errs = append(errs, &StructuralError{
				Kind:  KindOrphanSubsection,
				ID:    m.ID,
				Lines: []int{m.Line + 1},
				Msg:   fmt.Sprintf("subsection %q is not inside any section", m.ID),
			})
			continue
		}
		if _, seen := perSection[s.ID]; !seen {
			sectionOrder = append(sectionOrder, s.ID)
		}
		perSection[s.ID] = append(perSection[s.ID], m)
	}
	for _, sid := range sectionOrder {
		for _, e := range duplicates(perSection[sid], KindDuplicateSubsection, "subsection") {
			e.Msg = fmt.Sprintf("%s in section %q", e.Msg, sid)
			errs = append(errs, e)
		}
	}

	sectionIDs := make([]string, 0, len(opts.RequiredSubsections))
	for id := range opts.RequiredSubsections {
		sectionIDs = append(sectionIDs, id)
	}
	sort.Strings(sectionIDs)
	for _, sid := range sectionIDs {
		sec, ok := doc.Section(sid)
		if !ok {
			// Missing sections are reported by the workflow order check.
			continue
		}
		for _, sub := range opts.RequiredSubsections[sid] {
			if _, ok := sec.Subsection(sub); !ok {
				errs = append(errs, &StructuralError{
					Kind:  KindMissingSubsection,
					ID:    sid + "/" + sub,
					Lines: []int{sec.Start + 1},
					Msg:   fmt.Sprintf("section %q is missing required subsection %q", sid, sub),
				})
			}
		}
	}
	return errs
}

func checkWorkflowOrder(res *markers.Result) []*StructuralError {
	var errs []*StructuralError
	if len(res.Orders) > 1 {
		lines := make([]int, len(res.Orders))
		for i, o := range res.Orders {
			lines[i] = o.Start + 1
		}
		errs = append(errs, &StructuralError{
			Kind:  KindWorkflowOrder,
			Lines: lines,
			Msg:   fmt.Sprintf("document declares %d workflow order blocks, expected at most one", len(res.Orders)),
		})
	}

	sections := make(map[string]bool)
	for _, m := range res.Of(markers.KindSection) {
		sections[m.ID] = true
	}
	for _, o := range res.Orders {
		if !o.Terminated {
			errs = append(errs, &StructuralError{
				Kind:  KindWorkflowOrder,
				Lines: []int{o.Start + 1},
				Msg:   "workflow order block is not terminated with -->",
			})
		}
		seen := make(map[string]int)
		for _, e := range o.Entries {
			if types.IsReviewGate(e.ID) {
				if !markers.ValidID(types.GateName(e.ID)) {
					errs = append(errs, &StructuralError{
						Kind:  KindUnknownTarget,
						ID:    e.ID,
						Lines: []int{e.Line + 1},
						Msg:   fmt.Sprintf("review gate target %q has an invalid name", e.ID),
					})
				}
			} else if !sections[e.ID] {
				errs = append(errs, &StructuralError{
					Kind:  KindUnknownTarget,
					ID:    e.ID,
					Lines: []int{e.Line + 1},
					Msg:   fmt.Sprintf("workflow target %q does not match any section", e.ID),
				})
			}
			if first, dup := seen[e.ID]; dup {
				errs = append(errs, &StructuralError{
					Kind:  KindDuplicateTarget,
					ID:    e.ID,
					Lines: []int{first + 1, e.Line + 1},
					Msg:   fmt.Sprintf("workflow target %q is listed more than once", e.ID),
				})
				continue
			}
			seen[e.ID] = e.Line
		}
	}
	return errs
}
