package runner

import (
	"context"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/gate"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

// QuestionRequest asks for clarifying questions about one section.
type QuestionRequest struct {
	SectionID        string `json:"section_id"`
	DocType          string `json:"doc_type"`
	Context          string `json:"context"`
	Profile          string `json:"profile,omitempty"`
	AllowSubsections bool   `json:"allow_subsections"`
}

// GeneratedQuestion is one question proposed by the collaborator.
type GeneratedQuestion struct {
	Question      string `json:"question"`
	SectionTarget string `json:"section_target"`
	Rationale     string `json:"rationale,omitempty"`
}

// IntegrationRequest asks for a section body rewritten with the answers.
type IntegrationRequest struct {
	SectionID    string             `json:"section_id"`
	DocType      string             `json:"doc_type"`
	Body         string             `json:"body"`
	Questions    []types.Question   `json:"questions"`
	Profile      string             `json:"profile,omitempty"`
	OutputFormat types.OutputFormat `json:"output_format"`
	// Subsections lists the subsection ids of the section, if any. When set,
	// the answer must come back per subsection.
	Subsections []string `json:"subsections,omitempty"`
}

// Integration is the collaborator's rewrite. Exactly one of Body and
// Subsections is expected to be set.
type Integration struct {
	Body        string            `json:"body,omitempty"`
	Subsections map[string]string `json:"subsections,omitempty"`
}

// Collaborator produces the text the workflow cannot produce itself. Every
// value it returns is untrusted and is sanitized and re-validated before it
// reaches the document.
type Collaborator interface {
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]GeneratedQuestion, error)
	IntegrateAnswers(ctx context.Context, req IntegrationRequest) (*Integration, error)
	gate.Reviewer
}
