package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/gate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
)

// ErrMalformedResponse is returned when a reply holds no usable JSON.
var ErrMalformedResponse = errors.New("malformed model response")

var _ runner.Collaborator = (*Client)(nil)

type systemData struct {
	DocType string
	Profile string
}

// GenerateQuestions asks the model for clarifying questions about a section.
func (c *Client) GenerateQuestions(ctx context.Context, req runner.QuestionRequest) ([]runner.GeneratedQuestion, error) {
	prompt, err := render(c.prompts.questions, req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []runner.GeneratedQuestion `json:"questions"`
	}
	if err := c.ask(ctx, "generate_questions", req.DocType, req.Profile, prompt, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// IntegrateAnswers asks the model to rewrite a section with its answers.
func (c *Client) IntegrateAnswers(ctx context.Context, req runner.IntegrationRequest) (*runner.Integration, error) {
	prompt, err := render(c.prompts.integrate, req)
	if err != nil {
		return nil, err
	}
	var out runner.Integration
	if err := c.ask(ctx, "integrate_answers", req.DocType, req.Profile, prompt, &out); err != nil {
		return nil, err
	}
	if out.Body == "" && len(out.Subsections) == 0 {
		return nil, fmt.Errorf("integrate_answers: %w: empty rewrite", ErrMalformedResponse)
	}
	return &out, nil
}

// PerformReview asks the model to critique the sections in a gate's scope.
func (c *Client) PerformReview(ctx context.Context, req gate.ReviewRequest) (*gate.ReviewResponse, error) {
	prompt, err := render(c.prompts.review, req)
	if err != nil {
		return nil, err
	}
	var out gate.ReviewResponse
	if err := c.ask(ctx, "review_gate", req.DocType, req.Profile, prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ask(ctx context.Context, operation, docType, profile, prompt string, v any) error {
	system, err := render(c.prompts.system, systemData{DocType: docType, Profile: profile})
	if err != nil {
		return err
	}
	text, err := c.complete(ctx, operation, system, prompt)
	if err != nil {
		return err
	}
	if err := decodeJSON(text, v); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

// decodeJSON extracts the outermost JSON object from a reply, tolerating
// code fences and chatter around it.
func decodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// LoadProfile reads the guidance text for a doc type from
// <dir>/<docType>.md. A missing profile is not an error.
func LoadProfile(dir, docType string) (string, error) {
	if dir == "" || docType == "" || strings.ContainsAny(docType, `/\`) {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(dir, docType+".md")) // #nosec G304 - doc type is a bare file name
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read profile for %s: %w", docType, err)
	}
	return strings.TrimSpace(string(data)), nil
}
