// Package ledger maintains the open-questions tables of a document.
//
// Questions are read from every questions table (open_questions or any table
// id ending in _questions). New questions are appended to the primary table.
// Ids are assigned from the highest numeric suffix in use, so they never
// repeat even after resolution, and a question is never inserted twice for
// the same target.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

var (
	// ErrNoQuestionsTable is returned when a question must be stored but the
	// document has no questions table.
	ErrNoQuestionsTable = errors.New("document has no open questions table")
	// ErrUnknownQuestion is returned for ids not present in the ledger.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrResolved is returned when changing a question that is already resolved.
	ErrResolved = errors.New("question is already resolved")
	// ErrStale is returned by Render when the document no longer matches the
	// ledger's view of it.
	ErrStale = errors.New("document changed since the ledger was loaded")
)

type entry struct {
	q     types.Question
	orig  types.Question
	table *table
	line  int // -1 for rows not yet rendered
}

func (e *entry) changed() bool {
	return e.line < 0 || e.q != e.orig
}

type table struct {
	id      string
	simple  bool
	section string // enclosing section, the implied target for simple tables
	end     int    // line after the last row
}

// Ledger is an in-memory view of the questions tables of one document.
type Ledger struct {
	entries []*entry
	tables  []*table
	primary *table
	now     func() time.Time
}

// Load reads every questions table in doc. The document should already have
// passed structural validation; headers that match no known schema are an
// error.
func Load(doc *document.Document) (*Ledger, error) {
	l := &Ledger{now: time.Now}
	for _, t := range doc.Tables() {
		if !document.IsQuestionsTable(t.ID) || t.HeaderLine < 0 {
			continue
		}
		tb := &table{id: t.ID, end: t.End}
		switch {
		case validation.IsSimpleHeader(t.Header):
			tb.simple = true
		case equal(t.Header, validation.FullQuestionsHeader):
		default:
			return nil, fmt.Errorf("questions table %q has an unrecognized header", t.ID)
		}
		if sec, ok := doc.SectionAt(t.MarkerLine); ok {
			tb.section = sec.ID
		}
		l.tables = append(l.tables, tb)
		if l.primary == nil || (t.ID == "open_questions" && l.primary.id != "open_questions") {
			l.primary = tb
		}

		for _, row := range t.Rows {
			q, ok, err := parseRow(row.Cells, tb)
			if err != nil {
				return nil, fmt.Errorf("questions table %q line %d: %w", t.ID, row.Line+1, err)
			}
			if !ok {
				continue
			}
			l.entries = append(l.entries, &entry{q: q, orig: q, table: tb, line: row.Line})
		}
	}
	return l, nil
}

// SetClock overrides the clock used to date new questions.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// HasTable reports whether the document has a questions table to write to.
func (l *Ledger) HasTable() bool {
	return l.primary != nil
}

func parseRow(cells []string, tb *table) (types.Question, bool, error) {
	header := validation.FullQuestionsHeader
	if tb.simple {
		header = validation.SimpleQuestionsHeader
	}
	cell := func(name string) string {
		i := validation.ColumnIndex(header, name)
		if i < 0 || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	id := cell(validation.ColQuestionID)
	if id == "" {
		// Template filler rows carry no question.
		return types.Question{}, false, nil
	}
	statusCol := validation.ColResolution
	if tb.simple {
		statusCol = validation.ColStatusSimple
	}
	status, err := types.ParseQuestionStatus(cell(statusCol))
	if err != nil {
		return types.Question{}, false, err
	}
	target := tb.section
	if !tb.simple {
		if t := cell(validation.ColSectionTarget); t != "" {
			target = t
		}
	}
	return types.Question{
		ID:     id,
		Text:   cell(validation.ColQuestion),
		Target: target,
		Date:   cell(validation.ColDate),
		Answer: cell(validation.ColAnswer),
		Status: status,
	}, true, nil
}

func (l *Ledger) sorted() []*entry {
	out := make([]*entry, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool {
		ni, _ := types.QuestionNumber(out[i].q.ID)
		nj, _ := types.QuestionNumber(out[j].q.ID)
		if ni != nj {
			return ni < nj
		}
		return out[i].q.ID < out[j].q.ID
	})
	return out
}

func (l *Ledger) find(id string) *entry {
	id = strings.TrimSpace(id)
	for _, e := range l.entries {
		if strings.EqualFold(e.q.ID, id) {
			return e
		}
	}
	return nil
}

// All returns every question ordered by ascending numeric id.
func (l *Ledger) All() []types.Question {
	return l.filter(func(*types.Question) bool { return true })
}

// Get returns one question by id.
func (l *Ledger) Get(id string) (types.Question, bool) {
	if e := l.find(id); e != nil {
		return e.q, true
	}
	return types.Question{}, false
}

// ForSection returns every question targeting a section.
func (l *Ledger) ForSection(sectionID string) []types.Question {
	return l.filter(func(q *types.Question) bool { return q.Target == sectionID })
}

// Answered returns the answerable questions for a section: a real answer and
// status Open or Deferred, ordered by ascending id.
func (l *Ledger) Answered(sectionID string) []types.Question {
	return l.filter(func(q *types.Question) bool { return q.Target == sectionID && q.IsAnswered() })
}

// Unanswered returns the questions for a section still waiting on an answer.
func (l *Ledger) Unanswered(sectionID string) []types.Question {
	return l.filter(func(q *types.Question) bool { return q.Target == sectionID && q.IsUnanswered() })
}

// Pending returns every Open or Deferred question regardless of answer.
func (l *Ledger) Pending() []types.Question {
	return l.filter(func(q *types.Question) bool { return q.Status.IsPending() })
}

func (l *Ledger) filter(keep func(*types.Question) bool) []types.Question {
	var out []types.Question
	for _, e := range l.sorted() {
		if keep(&e.q) {
			out = append(out, e.q)
		}
	}
	return out
}

// NextID returns the id the next inserted question will receive.
func (l *Ledger) NextID() string {
	highest := 0
	for _, e := range l.entries {
		if n, ok := types.QuestionNumber(e.q.ID); ok && n > highest {
			highest = n
		}
	}
	return types.FormatQuestionID(highest + 1)
}

// Insert adds a new Open question and returns its id. When a question with
// the same normalized text and target already exists (in any status) nothing
// is inserted and the existing id is returned with inserted=false.
func (l *Ledger) Insert(q types.Question) (id string, inserted bool, err error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Target = strings.TrimSpace(q.Target)
	if q.Text == "" {
		return "", false, errors.New("question text is empty")
	}
	if q.Target == "" {
		return "", false, errors.New("question has no target section")
	}
	key := q.DedupKey()
	for _, e := range l.entries {
		if e.q.DedupKey() == key {
			return e.q.ID, false, nil
		}
	}
	if l.primary == nil {
		return "", false, ErrNoQuestionsTable
	}
	if l.primary.simple && q.Target != l.primary.section {
		return "", false, fmt.Errorf("questions table %q only holds questions for section %q, not %q",
			l.primary.id, l.primary.section, q.Target)
	}

	nq := types.Question{
		ID:     l.NextID(),
		Text:   q.Text,
		Target: q.Target,
		Date:   l.now().Format("2006-01-02"),
		Status: types.StatusOpen,
	}
	l.entries = append(l.entries, &entry{q: nq, table: l.primary, line: -1})
	return nq.ID, true, nil
}

// ResolveReport describes the outcome of Resolve.
type ResolveReport struct {
	Resolved        []string `json:"resolved,omitempty"`
	Unknown         []string `json:"unknown,omitempty"`
	AlreadyResolved []string `json:"already_resolved,omitempty"`
}

// OK reports whether every requested id was resolved.
func (r ResolveReport) OK() bool {
	return len(r.Unknown) == 0 && len(r.AlreadyResolved) == 0
}

// Resolve marks the given questions Resolved. It is all-or-nothing: if any id
// is unknown or already resolved nothing changes and the report says why.
func (l *Ledger) Resolve(ids []string) ResolveReport {
	var rep ResolveReport
	var targets []*entry
	seen := make(map[*entry]bool)
	for _, id := range ids {
		e := l.find(id)
		switch {
		case e == nil:
			rep.Unknown = append(rep.Unknown, id)
		case e.q.Status == types.StatusResolved || seen[e]:
			rep.AlreadyResolved = append(rep.AlreadyResolved, id)
		default:
			seen[e] = true
			targets = append(targets, e)
		}
	}
	if !rep.OK() {
		return rep
	}
	for _, e := range targets {
		e.q.Status = types.StatusResolved
		rep.Resolved = append(rep.Resolved, e.q.ID)
	}
	return rep
}

// SetAnswer records an answer for a pending question.
func (l *Ledger) SetAnswer(id, answer string) error {
	e := l.find(id)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	if e.q.Status == types.StatusResolved {
		return fmt.Errorf("%w: %s", ErrResolved, e.q.ID)
	}
	e.q.Answer = strings.TrimSpace(answer)
	return nil
}

// Defer marks a pending question Deferred.
func (l *Ledger) Defer(id string) error {
	e := l.find(id)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	if e.q.Status == types.StatusResolved {
		return fmt.Errorf("%w: %s", ErrResolved, e.q.ID)
	}
	e.q.Status = types.StatusDeferred
	return nil
}

// Changed reports whether Render would modify the document.
func (l *Ledger) Changed() bool {
	for _, e := range l.entries {
		if e.changed() {
			return true
		}
	}
	return false
}

// Render writes changed rows back into doc, which must hold the same content
// the ledger was loaded from. Unchanged rows are left byte-for-byte intact and
// new rows are appended to the primary table in id order.
func (l *Ledger) Render(doc *document.Document) error {
	for _, e := range l.entries {
		if e.line < 0 || !e.changed() {
			continue
		}
		if e.line >= doc.Len() {
			return ErrStale
		}
		cells := document.SplitRow(doc.Line(e.line))
		if len(cells) == 0 || !strings.EqualFold(strings.TrimSpace(cells[0]), e.orig.ID) {
			return fmt.Errorf("%w: row for %s moved", ErrStale, e.orig.ID)
		}
		doc.SetLine(e.line, formatRow(e.q, e.table.simple))
	}

	var fresh []string
	for _, e := range l.sorted() {
		if e.line < 0 {
			fresh = append(fresh, formatRow(e.q, e.table.simple))
		}
	}
	if len(fresh) > 0 {
		at := l.primary.end
		if at > doc.Len() {
			return ErrStale
		}
		doc.Splice(at, at, fresh)
	}
	return nil
}

func formatRow(q types.Question, simple bool) string {
	if simple {
		return document.FormatRow([]string{q.ID, q.Text, q.Date, q.Answer, string(q.Status)})
	}
	return document.FormatRow([]string{q.ID, q.Text, q.Date, q.Answer, q.Target, string(q.Status)})
}

func equal(a, b []string) bool {
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
