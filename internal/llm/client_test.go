package llm

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/gate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

type fakeReply struct {
	text string
	err  error
}

type fakeSender struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   []anthropic.MessageNewParams
}

func (f *fakeSender) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, body)
	if len(f.replies) == 0 {
		return nil, errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: r.text}},
		Usage:   anthropic.Usage{InputTokens: 12, OutputTokens: 34},
	}, nil
}

func (f *fakeSender) lastPrompt(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1].Messages[0].Content[0].OfText.Text
}

func testClient(t *testing.T, replies ...fakeReply) (*Client, *fakeSender) {
	t.Helper()
	f := &fakeSender{replies: replies}
	c, err := newClient(f, Options{MaxRetries: 2, Timeout: time.Second})
	require.NoError(t, err)
	c.initialBackoff = time.Millisecond
	return c, f
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"net timeout", timeoutErr{}, true},
		{"rate limited", &anthropic.Error{StatusCode: 429}, true},
		{"server error", &anthropic.Error{StatusCode: 503}, true},
		{"bad request", &anthropic.Error{StatusCode: 400}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	c, f := testClient(t,
		fakeReply{err: timeoutErr{}},
		fakeReply{err: timeoutErr{}},
		fakeReply{text: "ok"},
	)
	got, err := c.complete(context.Background(), "test", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Len(t, f.calls, 3)
	assert.Empty(t, f.calls[0].System)
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	c, f := testClient(t,
		fakeReply{err: timeoutErr{}},
		fakeReply{err: timeoutErr{}},
		fakeReply{err: timeoutErr{}},
		fakeReply{text: "too late"},
	)
	_, err := c.complete(context.Background(), "test", "", "hello")
	require.Error(t, err)
	assert.Len(t, f.calls, 3, "one attempt plus two retries")
}

func TestCompleteStopsOnPermanentError(t *testing.T) {
	c, f := testClient(t,
		fakeReply{err: errors.New("invalid request")},
		fakeReply{text: "unreachable"},
	)
	_, err := c.complete(context.Background(), "test", "", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.Len(t, f.calls, 1)
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Body string `json:"body"`
	}
	require.NoError(t, decodeJSON("Sure!\n```json\n{\"body\": \"x\"}\n```", &out))
	assert.Equal(t, "x", out.Body)

	assert.ErrorIs(t, decodeJSON("no json here", &out), ErrMalformedResponse)
	assert.ErrorIs(t, decodeJSON("{not json}", &out), ErrMalformedResponse)
}

func TestGenerateQuestions(t *testing.T) {
	c, f := testClient(t, fakeReply{text: `{"questions": [{"question": "Who are the users?", "section_target": "goals", "rationale": "scope"}]}`})

	qs, err := c.GenerateQuestions(context.Background(), runner.QuestionRequest{
		SectionID: "goals",
		DocType:   "requirements",
		Context:   "### problem_statement\nSlow builds.",
		Profile:   "Prefer measurable goals.",
	})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Who are the users?", qs[0].Question)
	assert.Equal(t, "goals", qs[0].SectionTarget)

	prompt := f.lastPrompt(t)
	assert.Contains(t, prompt, `Section "goals"`)
	assert.Contains(t, prompt, "Slow builds.")
	assert.Contains(t, prompt, `Every question must target "goals"`)
	require.Len(t, f.calls[0].System, 1)
	assert.Contains(t, f.calls[0].System[0].Text, "Prefer measurable goals.")
}

func TestIntegrateAnswers(t *testing.T) {
	c, f := testClient(t,
		fakeReply{text: `{"body": "- Platform team\n- Release managers"}`},
		fakeReply{text: `{}`},
	)
	req := runner.IntegrationRequest{
		SectionID:    "goals",
		DocType:      "requirements",
		Body:         "<!-- PLACEHOLDER -->",
		OutputFormat: types.FormatBullets,
		Questions: []types.Question{
			{ID: "Q-001", Text: "Which teams?", Target: "goals", Answer: "Platform, release"},
		},
	}
	got, err := c.IntegrateAnswers(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "- Platform team\n- Release managers", got.Body)

	prompt := f.lastPrompt(t)
	assert.Contains(t, prompt, "- Q-001 (goals): Which teams?")
	assert.Contains(t, prompt, "Answer: Platform, release")
	assert.Contains(t, prompt, "bullet list")

	_, err = c.IntegrateAnswers(context.Background(), req)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestIntegrateAnswersSubsections(t *testing.T) {
	c, f := testClient(t, fakeReply{text: `{"subsections": {"in_scope": "Builds."}}`})
	got, err := c.IntegrateAnswers(context.Background(), runner.IntegrationRequest{
		SectionID:   "scope",
		Subsections: []string{"in_scope", "out_of_scope"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"in_scope": "Builds."}, got.Subsections)
	assert.Contains(t, f.lastPrompt(t), "subsections: in_scope, out_of_scope.")
}

func TestPerformReview(t *testing.T) {
	c, f := testClient(t, fakeReply{text: `{"pass": false, "summary": "gaps", "issues": [{"severity": "blocker", "section": "goals", "description": "vague"}], "patches": [{"section": "goals", "suggestion": "Cut build time in half."}]}`})
	resp, err := c.PerformReview(context.Background(), gate.ReviewRequest{
		GateID:   "review_gate:coherence",
		Sections: []gate.SectionBody{{ID: "goals", Body: "Faster."}},
		Rules:    []string{"goals must be measurable"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Pass)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, types.SeverityBlocker, resp.Issues[0].Severity)
	require.Len(t, resp.Patches, 1)
	assert.Equal(t, "Cut build time in half.", resp.Patches[0].Suggestion)

	prompt := f.lastPrompt(t)
	assert.Contains(t, prompt, "### goals\nFaster.")
	assert.Contains(t, prompt, "- goals must be measurable")
	assert.True(t, strings.Contains(prompt, `gate "review_gate:coherence"`))
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir+"/requirements.md", "  Be concrete.\n"))

	got, err := LoadProfile(dir, "requirements")
	require.NoError(t, err)
	assert.Equal(t, "Be concrete.", got)

	got, err = LoadProfile(dir, "design")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = LoadProfile(dir, "../etc/passwd")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
