package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

const fullDoc = `<!-- section:problem_statement -->
## Problem

<!-- PLACEHOLDER -->

---

<!-- section:open_questions -->
## Open Questions

<!-- table:open_questions -->
| Question ID | Question | Date | Answer | Section Target | Resolution Status |
|---|---|---|---|---|---|
| Q-001 | Who are the users? | 2024-01-01 | Analysts | problem_statement | Open |
| Q-003 | What is out of scope? | 2024-01-01 | - | problem_statement | Deferred |
| Q-002 | Old question | 2024-01-01 | done | problem_statement | Resolved |

---
`

var fixedNow = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }

func load(t *testing.T, text string) (*document.Document, *Ledger) {
	t.Helper()
	doc := document.Parse(text)
	l, err := Load(doc)
	require.NoError(t, err)
	l.SetClock(fixedNow)
	return doc, l
}

func ids(qs []types.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestLoadAndQueries(t *testing.T) {
	_, l := load(t, fullDoc)

	assert.Equal(t, []string{"Q-001", "Q-002", "Q-003"}, ids(l.All()))
	assert.Equal(t, []string{"Q-001"}, ids(l.Answered("problem_statement")))
	assert.Equal(t, []string{"Q-003"}, ids(l.Unanswered("problem_statement")))
	assert.Empty(t, l.Answered("other"))
	assert.Equal(t, []string{"Q-001", "Q-003"}, ids(l.Pending()))
	assert.Equal(t, "Q-004", l.NextID())
}

func TestInsertDedupAndMonotonicIDs(t *testing.T) {
	doc, l := load(t, fullDoc)

	id, inserted, err := l.Insert(types.Question{Text: "What is the budget?", Target: "problem_statement"})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "Q-004", id)

	// Same question, different case and spacing.
	id2, inserted, err := l.Insert(types.Question{Text: "  what is   the BUDGET? ", Target: "problem_statement"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "Q-004", id2)

	// Resolved questions are never duplicated either.
	_, inserted, err = l.Insert(types.Question{Text: "old question", Target: "problem_statement"})
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same text for a different section is a different question.
	id3, inserted, err := l.Insert(types.Question{Text: "What is the budget?", Target: "scope"})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "Q-005", id3)

	require.NoError(t, l.Render(doc))
	text := doc.String()
	assert.Contains(t, text, "| Q-004 | What is the budget? | 2025-03-04 |  | problem_statement | Open |")
	assert.Contains(t, text, "| Q-005 | What is the budget? | 2025-03-04 |  | scope | Open |")
	assert.Empty(t, validation.Validate(doc, validation.Options{}))

	// Reloading and inserting the same questions again does not grow the table.
	reloaded, err := Load(doc)
	require.NoError(t, err)
	before := len(reloaded.All())
	_, inserted, _ = reloaded.Insert(types.Question{Text: "What is the budget?", Target: "problem_statement"})
	assert.False(t, inserted)
	assert.Len(t, reloaded.All(), before)
	assert.False(t, reloaded.Changed())
}

func TestInsertRejectsEmpty(t *testing.T) {
	_, l := load(t, fullDoc)
	_, _, err := l.Insert(types.Question{Text: " ", Target: "x"})
	assert.Error(t, err)
	_, _, err = l.Insert(types.Question{Text: "x"})
	assert.Error(t, err)
}

func TestInsertWithoutTable(t *testing.T) {
	_, l := load(t, "<!-- section:a -->\ntext\n")
	assert.False(t, l.HasTable())
	_, _, err := l.Insert(types.Question{Text: "q", Target: "a"})
	assert.ErrorIs(t, err, ErrNoQuestionsTable)
}

func TestResolveIsOneWay(t *testing.T) {
	doc, l := load(t, fullDoc)

	rep := l.Resolve([]string{"Q-001"})
	assert.True(t, rep.OK())
	assert.Equal(t, []string{"Q-001"}, rep.Resolved)

	again := l.Resolve([]string{"Q-001"})
	assert.False(t, again.OK())
	assert.Equal(t, []string{"Q-001"}, again.AlreadyResolved)
	assert.Empty(t, again.Resolved)

	q, _ := l.Get("Q-001")
	assert.Equal(t, types.StatusResolved, q.Status)

	assert.ErrorIs(t, l.SetAnswer("Q-001", "new"), ErrResolved)
	assert.ErrorIs(t, l.Defer("Q-001"), ErrResolved)

	require.NoError(t, l.Render(doc))
	assert.Contains(t, doc.String(), "| Q-001 | Who are the users? | 2024-01-01 | Analysts | problem_statement | Resolved |")
}

func TestResolveAllOrNothing(t *testing.T) {
	_, l := load(t, fullDoc)
	rep := l.Resolve([]string{"Q-003", "Q-999", "Q-002"})
	assert.False(t, rep.OK())
	assert.Equal(t, []string{"Q-999"}, rep.Unknown)
	assert.Equal(t, []string{"Q-002"}, rep.AlreadyResolved)

	q, _ := l.Get("Q-003")
	assert.Equal(t, types.StatusDeferred, q.Status, "no id may change when any id fails")
	assert.False(t, l.Changed())
}

func TestAnswerAndDefer(t *testing.T) {
	doc, l := load(t, fullDoc)
	require.NoError(t, l.SetAnswer("q-003", "Billing"))
	assert.Equal(t, []string{"Q-001", "Q-003"}, ids(l.Answered("problem_statement")))

	require.NoError(t, l.Defer("Q-001"))
	q, _ := l.Get("Q-001")
	assert.Equal(t, types.StatusDeferred, q.Status)
	assert.True(t, q.IsAnswered(), "deferred questions with an answer are still answerable")

	assert.ErrorIs(t, l.SetAnswer("Q-404", "x"), ErrUnknownQuestion)

	require.NoError(t, l.Render(doc))
	text := doc.String()
	assert.Contains(t, text, "| Q-003 | What is out of scope? | 2024-01-01 | Billing | problem_statement | Deferred |")
	// Untouched rows keep their exact original text.
	assert.Contains(t, text, "| Q-002 | Old question | 2024-01-01 | done | problem_statement | Resolved |")
}

func TestRenderDetectsStaleDocument(t *testing.T) {
	doc, l := load(t, fullDoc)
	require.NoError(t, l.SetAnswer("Q-001", "Everyone"))
	other := document.Parse(strings.Replace(fullDoc, "| Q-001 |", "| Q-101 |", 1))
	assert.ErrorIs(t, l.Render(other), ErrStale)
	assert.NoError(t, l.Render(doc))
}

const simpleDoc = `<!-- section:risks -->
## Risks

<!-- table:risks_questions -->
| Question ID | Question | Date | Answer | Status |
|---|---|---|---|---|
| Q-001 | Biggest risk? | 2024-01-01 | Latency | Open |
`

func TestSimpleSchema(t *testing.T) {
	doc, l := load(t, simpleDoc)
	assert.Equal(t, []string{"Q-001"}, ids(l.Answered("risks")))

	_, _, err := l.Insert(types.Question{Text: "Other?", Target: "elsewhere"})
	assert.Error(t, err, "simple tables only hold questions for their own section")

	id, inserted, err := l.Insert(types.Question{Text: "Second risk?", Target: "risks"})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "Q-002", id)

	require.NoError(t, l.Render(doc))
	assert.Contains(t, doc.String(), "| Q-002 | Second risk? | 2025-03-04 |  | Open |")
	assert.Empty(t, validation.Validate(doc, validation.Options{QuestionSchema: validation.SchemaSimple}))
}

func TestLoadRejectsUnknownHeader(t *testing.T) {
	doc := document.Parse("<!-- table:open_questions -->\n| ID | Text |\n|---|---|\n")
	_, err := Load(doc)
	assert.Error(t, err)
}
