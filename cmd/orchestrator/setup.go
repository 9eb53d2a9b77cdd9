package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/docstore"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/document"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/handlers"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/llm"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/runner"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/utils"
)

// newCollaborator builds the LLM collaborator from config. Tests replace it.
var newCollaborator = func() (runner.Collaborator, error) {
	c, err := llm.New(llm.Options{
		Model:      config.Model(),
		MaxTokens:  config.GetInt("llm.max-tokens"),
		MaxRetries: config.GetInt("llm.max-retries"),
		Timeout:    config.GetDuration("llm.timeout"),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// loadRegistry reads the configured handler registry. A missing file means
// built-in defaults only.
func loadRegistry() (*handlers.Registry, error) {
	path := config.RegistryPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		debug.Logf("no handler registry at %s, using defaults\n", path)
		return handlers.Empty(), nil
	}
	return handlers.Load(path)
}

// newInspector builds a runner with no collaborator, enough for validation,
// status and ledger edits.
func newInspector(docPath string) (*runner.Runner, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	docType := config.DocType()
	schema, err := config.QuestionSchema(docType)
	if err != nil {
		return nil, err
	}
	return &runner.Runner{
		Registry: reg,
		DocType:  docType,
		Schema:   schema,
		Source:   filepath.Base(docPath),
	}, nil
}

// newWorkflowRunner is newInspector plus the collaborator and the doc type
// profile.
func newWorkflowRunner(docPath string) (*runner.Runner, error) {
	r, err := newInspector(docPath)
	if err != nil {
		return nil, err
	}
	profile, err := llm.LoadProfile(config.ProfileDir(), r.DocType)
	if err != nil {
		return nil, err
	}
	if profile == "" {
		debug.Logf("no profile for doc type %s in %s\n", r.DocType, config.ProfileDir())
	}
	collab, err := newCollaborator()
	if err != nil {
		return nil, err
	}
	r.Profile = profile
	r.Collaborator = collab
	return r, nil
}

func newStore() *docstore.Store {
	return &docstore.Store{BackupDir: config.BackupDir()}
}

// docPath canonicalizes a document argument and checks it is a file.
func docPath(arg string) (string, error) {
	path := utils.CanonicalizePath(arg)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot access document: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", arg)
	}
	return path, nil
}

// readDocument loads a document under a shared lock.
func readDocument(ctx context.Context, path string) (*document.Document, error) {
	var doc *document.Document
	err := lockfile.WithShared(ctx, path, lockfile.DefaultTimeout, func() error {
		var err error
		doc, err = docstore.Load(path)
		return err
	})
	return doc, err
}

// saveResult reports what a write did.
type saveResult struct {
	Written bool   `json:"written"`
	Backup  string `json:"backup,omitempty"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

// save writes doc unless dryRun is set. The caller holds the exclusive lock.
func save(path string, doc *document.Document, dryRun bool) (saveResult, error) {
	if dryRun {
		return saveResult{DryRun: true}, nil
	}
	backup, written, err := newStore().Save(path, doc)
	if err != nil {
		return saveResult{}, err
	}
	if written {
		debug.LogEvent("WRITE", "", filepath.Base(path), "backup="+backup)
	}
	return saveResult{Written: written, Backup: backup}, nil
}
