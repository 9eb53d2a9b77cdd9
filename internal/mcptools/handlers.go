package mcptools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/docstore"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/handlers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ledger"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

// Service answers read-only questions about documents under one project
// directory. It never writes a document.
type Service struct {
	root        string
	cfg         *config.LocalConfig
	lockTimeout time.Duration
}

// NewService creates a Service rooted at projectDir.
func NewService(projectDir string) (*Service, error) {
	root, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access project dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project dir is not a directory: %s", root)
	}
	return &Service{
		root:        root,
		cfg:         config.LoadLocalConfig(root),
		lockTimeout: 5 * time.Second,
	}, nil
}

// Root returns the absolute project directory.
func (s *Service) Root() string { return s.root }

// resolve maps a tool path argument to a file inside the project.
func (s *Service) resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path is required")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the project", p)
	}
	return p, nil
}

// load reads a document under a shared lock so a concurrent run never hands
// us a half-written file.
func (s *Service) load(ctx context.Context, p string) (*document.Document, error) {
	path, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	var doc *document.Document
	err = lockfile.WithShared(ctx, path, s.lockTimeout, func() error {
		var lerr error
		doc, lerr = docstore.Load(path)
		return lerr
	})
	return doc, err
}

// runner builds an inspection-only runner for docType.
func (s *Service) runner(docType string) (*runner.Runner, error) {
	if docType == "" {
		docType = s.cfg.DocType
	}
	reg := handlers.Empty()
	regPath := s.cfg.Path(s.root, s.cfg.Registry)
	if _, err := os.Stat(regPath); err == nil {
		if reg, err = handlers.Load(regPath); err != nil {
			return nil, err
		}
	}
	schema, err := validation.ParseSchemaVariant(s.cfg.SchemaFor(strings.ToLower(docType)))
	if err != nil {
		return nil, err
	}
	return &runner.Runner{Registry: reg, DocType: docType, Schema: schema}, nil
}

func (s *Service) open(ctx context.Context, tool, path, docType string) (*document.Document, *runner.Runner, error) {
	debug.Logf("mcp %s: %s\n", tool, path)
	r, err := s.runner(docType)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	r.Source = path
	return doc, r, nil
}

// ErrorInfo is one structural error.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	ID      string `json:"id,omitempty"`
	Lines   []int  `json:"lines"`
	Message string `json:"message"`
}

func errorInfos(errs []*validation.StructuralError) []ErrorInfo {
	out := make([]ErrorInfo, 0, len(errs))
	for _, e := range errs {
		lines := e.Lines
		if lines == nil {
			lines = []int{}
		}
		out = append(out, ErrorInfo{Kind: string(e.Kind), ID: e.ID, Lines: lines, Message: e.Error()})
	}
	return out
}

// --- workflow_status ---

// WorkflowStatusInput selects a document.
type WorkflowStatusInput struct {
	Path    string `json:"path" jsonschema:"document path, relative to the project root"`
	DocType string `json:"docType,omitempty" jsonschema:"document type; defaults to the project's doc-type"`
}

// TargetInfo is the state of one workflow target.
type TargetInfo struct {
	Target     string `json:"target"`
	IsGate     bool   `json:"isGate"`
	Complete   bool   `json:"complete"`
	Action     string `json:"action,omitempty"`
	GateStatus string `json:"gateStatus,omitempty"`
}

// WorkflowStatusOutput reports every target and the next one to work on.
type WorkflowStatusOutput struct {
	Valid       bool         `json:"valid"`
	Errors      []ErrorInfo  `json:"errors"`
	Targets     []TargetInfo `json:"targets"`
	Next        string       `json:"next,omitempty"`
	AllComplete bool         `json:"allComplete"`
}

// WorkflowStatus classifies each workflow target of a document.
func (s *Service) WorkflowStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input WorkflowStatusInput,
) (*mcp.CallToolResult, WorkflowStatusOutput, error) {
	doc, r, err := s.open(ctx, "workflow_status", input.Path, input.DocType)
	if err != nil {
		return nil, WorkflowStatusOutput{}, err
	}
	rep, err := r.Inspect(doc)
	if err != nil {
		return nil, WorkflowStatusOutput{}, err
	}

	out := WorkflowStatusOutput{
		Valid:       rep.Valid,
		Errors:      errorInfos(rep.Errors),
		Targets:     make([]TargetInfo, 0, len(rep.Targets)),
		Next:        rep.Next,
		AllComplete: rep.AllComplete,
	}
	for _, ts := range rep.Targets {
		ti := TargetInfo{Target: ts.Target, IsGate: ts.IsGate, Complete: ts.Complete, Action: string(ts.Action)}
		if ts.Gate != nil {
			ti.GateStatus = string(ts.Gate.Status)
		}
		out.Targets = append(out.Targets, ti)
	}
	return nil, out, nil
}

// --- validate_document ---

// ValidateDocumentInput selects a document.
type ValidateDocumentInput struct {
	Path    string `json:"path" jsonschema:"document path, relative to the project root"`
	DocType string `json:"docType,omitempty" jsonschema:"document type; selects required subsections and the questions schema"`
}

// ValidateDocumentOutput lists structural errors.
type ValidateDocumentOutput struct {
	Valid  bool        `json:"valid"`
	Errors []ErrorInfo `json:"errors"`
}

// ValidateDocument runs the structural validator.
func (s *Service) ValidateDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ValidateDocumentInput,
) (*mcp.CallToolResult, ValidateDocumentOutput, error) {
	doc, r, err := s.open(ctx, "validate_document", input.Path, input.DocType)
	if err != nil {
		return nil, ValidateDocumentOutput{}, err
	}
	errs := validation.Validate(doc, r.ValidationOptions(doc))
	return nil, ValidateDocumentOutput{Valid: len(errs) == 0, Errors: errorInfos(errs)}, nil
}

// --- evaluate_completion ---

// EvaluateCompletionInput selects a document and the strictness.
type EvaluateCompletionInput struct {
	Path    string `json:"path" jsonschema:"document path, relative to the project root"`
	DocType string `json:"docType,omitempty" jsonschema:"document type"`
	Strict  bool   `json:"strict,omitempty" jsonschema:"treat deferred questions as blocking"`
}

// CheckInfo is one completion check.
type CheckInfo struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Blocking bool     `json:"blocking"`
	Details  []string `json:"details"`
}

// EvaluateCompletionOutput is the completion verdict.
type EvaluateCompletionOutput struct {
	Complete bool        `json:"complete"`
	Checks   []CheckInfo `json:"checks"`
	Warnings []string    `json:"warnings"`
}

// EvaluateCompletion runs the completion checks.
func (s *Service) EvaluateCompletion(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EvaluateCompletionInput,
) (*mcp.CallToolResult, EvaluateCompletionOutput, error) {
	doc, r, err := s.open(ctx, "evaluate_completion", input.Path, input.DocType)
	if err != nil {
		return nil, EvaluateCompletionOutput{}, err
	}
	st := r.Completion(doc, input.Strict, s.cfg.Gates.WarningsBlockStrict)

	out := EvaluateCompletionOutput{
		Complete: st.Complete,
		Checks:   make([]CheckInfo, 0, len(st.Checks)),
		Warnings: append([]string{}, st.Warnings...),
	}
	for _, c := range st.Checks {
		out.Checks = append(out.Checks, CheckInfo{
			Name:     c.Name,
			Passed:   c.Passed,
			Blocking: c.Blocking,
			Details:  append([]string{}, c.Details...),
		})
	}
	return nil, out, nil
}

// --- list_questions ---

// ListQuestionsInput selects a document and optional filters.
type ListQuestionsInput struct {
	Path    string `json:"path" jsonschema:"document path, relative to the project root"`
	Section string `json:"section,omitempty" jsonschema:"only questions targeting this section id"`
	Status  string `json:"status,omitempty" jsonschema:"only questions with this status: Open, Deferred or Resolved"`
}

// QuestionInfo is one ledger row.
type QuestionInfo struct {
	ID      string `json:"id"`
	Text    string `json:"question"`
	Section string `json:"sectionTarget"`
	Date    string `json:"date,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Status  string `json:"status"`
}

// ListQuestionsOutput holds the matching questions.
type ListQuestionsOutput struct {
	Questions []QuestionInfo `json:"questions"`
	Count     int            `json:"count"`
}

// ListQuestions returns rows of the questions ledger.
func (s *Service) ListQuestions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListQuestionsInput,
) (*mcp.CallToolResult, ListQuestionsOutput, error) {
	var status types.QuestionStatus
	if input.Status != "" {
		st, err := types.ParseQuestionStatus(input.Status)
		if err != nil {
			return nil, ListQuestionsOutput{}, err
		}
		status = st
	}

	doc, _, err := s.open(ctx, "list_questions", input.Path, "")
	if err != nil {
		return nil, ListQuestionsOutput{}, err
	}
	l, err := ledger.Load(doc)
	if err != nil {
		return nil, ListQuestionsOutput{}, err
	}

	qs := l.All()
	if input.Section != "" {
		qs = l.ForSection(input.Section)
	}
	out := ListQuestionsOutput{Questions: []QuestionInfo{}}
	for _, q := range qs {
		if status != "" && q.Status != status {
			continue
		}
		out.Questions = append(out.Questions, QuestionInfo{
			ID:      q.ID,
			Text:    q.Text,
			Section: q.Target,
			Date:    q.Date,
			Answer:  q.Answer,
			Status:  string(q.Status),
		})
	}
	out.Count = len(out.Questions)
	return nil, out, nil
}
