package mcptools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDoc = `<!-- workflow:order
problem_statement
goals
review_gate:coherence
-->

<!-- section:problem_statement -->
## Problem Statement

<!-- PLACEHOLDER -->

---

<!-- section:goals -->
## Goals

Ship the MVP.

---

<!-- section:open_questions -->
## Open Questions

<!-- table:open_questions -->
| Question ID | Question | Date | Answer | Section Target | Resolution Status |
|---|---|---|---|---|---|
| Q-001 | Who are the users? | 2025-01-01 | - | problem_statement | Open |
| Q-002 | Budget owner? | 2025-01-02 | Finance | goals | Resolved |
`

// setupServerClient writes the fixture into a fresh project and connects a
// client to a server for it over in-memory transports.
func setupServerClient(t *testing.T) (*mcp.ClientSession, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "requirements.md"), []byte(fixtureDoc), 0o644))

	svc, err := NewService(root)
	require.NoError(t, err)
	server := NewServer(svc, "test")

	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err = server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session, root
}

func call[T any](t *testing.T, session *mcp.ClientSession, name string, args any) T {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, result.IsError, "%s returned a tool error", name)
	require.NotNil(t, result.StructuredContent)

	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMCPListTools(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"evaluate_completion", "list_questions", "validate_document", "workflow_status"}, names)
}

func TestMCPWorkflowStatus(t *testing.T) {
	session, _ := setupServerClient(t)

	out := call[WorkflowStatusOutput](t, session, "workflow_status", WorkflowStatusInput{Path: "requirements.md"})
	assert.True(t, out.Valid)
	assert.False(t, out.AllComplete)
	assert.Equal(t, "problem_statement", out.Next)
	require.Len(t, out.Targets, 3)
	assert.Equal(t, "blocked", out.Targets[0].Action)
	assert.True(t, out.Targets[1].Complete)
	assert.True(t, out.Targets[2].IsGate)
	assert.Empty(t, out.Targets[2].GateStatus)
}

func TestMCPValidateDocument(t *testing.T) {
	session, root := setupServerClient(t)

	out := call[ValidateDocumentOutput](t, session, "validate_document", ValidateDocumentInput{Path: "requirements.md"})
	assert.True(t, out.Valid)
	assert.Empty(t, out.Errors)

	broken := fixtureDoc + "\n<!-- section:goals -->\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.md"), []byte(broken), 0o644))
	out = call[ValidateDocumentOutput](t, session, "validate_document", ValidateDocumentInput{Path: "broken.md"})
	assert.False(t, out.Valid)
	require.NotEmpty(t, out.Errors)
	assert.Equal(t, "goals", out.Errors[0].ID)
	assert.NotEmpty(t, out.Errors[0].Lines)
}

func TestMCPEvaluateCompletion(t *testing.T) {
	session, _ := setupServerClient(t)

	out := call[EvaluateCompletionOutput](t, session, "evaluate_completion", EvaluateCompletionInput{Path: "requirements.md"})
	assert.False(t, out.Complete)
	require.Len(t, out.Checks, 5)

	failed := map[string]bool{}
	for _, c := range out.Checks {
		if !c.Passed {
			failed[c.Name] = true
		}
	}
	assert.True(t, failed["no_placeholders"])
	assert.True(t, failed["no_open_questions"])
	assert.True(t, failed["all_review_gates_passed"])
	assert.False(t, failed["structure_valid"])
}

func TestMCPListQuestions(t *testing.T) {
	session, _ := setupServerClient(t)

	out := call[ListQuestionsOutput](t, session, "list_questions", ListQuestionsInput{Path: "requirements.md"})
	assert.Equal(t, 2, out.Count)

	out = call[ListQuestionsOutput](t, session, "list_questions", ListQuestionsInput{Path: "requirements.md", Status: "open"})
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "Q-001", out.Questions[0].ID)

	out = call[ListQuestionsOutput](t, session, "list_questions", ListQuestionsInput{Path: "requirements.md", Section: "goals"})
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "Finance", out.Questions[0].Answer)
}

func TestMCPToolErrors(t *testing.T) {
	session, _ := setupServerClient(t)
	ctx := context.Background()

	cases := []struct {
		name string
		tool string
		args any
	}{
		{"missing path", "validate_document", ValidateDocumentInput{}},
		{"escapes project", "workflow_status", WorkflowStatusInput{Path: "../outside.md"}},
		{"missing file", "evaluate_completion", EvaluateCompletionInput{Path: "nope.md"}},
		{"bad status", "list_questions", ListQuestionsInput{Path: "requirements.md", Status: "Maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tc.tool, Arguments: tc.args})
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestServiceResolve(t *testing.T) {
	root := t.TempDir()
	svc, err := NewService(root)
	require.NoError(t, err)

	p, err := svc.resolve("docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.Root(), "docs", "a.md"), p)

	_, err = svc.resolve(filepath.Join(svc.Root(), "..", "x.md"))
	assert.Error(t, err)

	_, err = NewService(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
