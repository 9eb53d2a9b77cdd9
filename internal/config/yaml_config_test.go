package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUpdateYamlKey(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		key      string
		value    string
		expected string
	}{
		{
			name:     "update commented key",
			content:  "# doc-type: requirements\nother: value",
			key:      "doc-type",
			value:    "design",
			expected: "doc-type: \"design\"\nother: value",
		},
		{
			name:     "update existing key",
			content:  "max-steps: 10\nother: value",
			key:      "max-steps",
			value:    "4",
			expected: "max-steps: 4\nother: value",
		},
		{
			name:     "add new key",
			content:  "other: value",
			key:      "json",
			value:    "true",
			expected: "other: value\n\njson: true",
		},
		{
			name:     "add to empty file",
			content:  "",
			key:      "json",
			value:    "true",
			expected: "json: true",
		},
		{
			name:     "preserve indentation",
			content:  "  # json: false\nother: value",
			key:      "json",
			value:    "true",
			expected: "  json: true\nother: value",
		},
		{
			name:     "handle duration value",
			content:  "# llm.timeout: \"5s\"",
			key:      "llm.timeout",
			value:    "90s",
			expected: "llm.timeout: 90s",
		},
		{
			name:     "dotted key does not match its prefix",
			content:  "questions.schema: full\nquestions.schema-by-doc-type: {}",
			key:      "questions.schema",
			value:    "simple",
			expected: "questions.schema: \"simple\"\nquestions.schema-by-doc-type: {}",
		},
		{
			name:     "quote special characters",
			content:  "other: value",
			key:      "model",
			value:    "a: b",
			expected: "other: value\n\nmodel: \"a: b\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := updateYamlKey(tt.content, tt.key, tt.value)
			if err != nil {
				t.Fatalf("updateYamlKey() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("updateYamlKey() =\n%q\nwant:\n%q", got, tt.expected)
			}
		})
	}
}

func TestFormatYamlValue(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"true", "true"},
		{"FALSE", "false"},
		{"123", "123"},
		{"3.14", "3.14"},
		{"30s", "30s"},
		{"1m30s", "1m30s"},
		{"simple", "\"simple\""},
		{"no", "\"no\""},
		{"has:colon", "\"has:colon\""},
		{" leading", "\" leading\""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := formatYamlValue(tt.value)
			if got != tt.expected {
				t.Errorf("formatYamlValue(%q) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}

func TestCheckValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"doc-type", "design", false},
		{"json", "true", false},
		{"json", "maybe", true},
		{"max-steps", "3", false},
		{"max-steps", "0", true},
		{"llm.timeout", "45s", false},
		{"llm.timeout", "soon", true},
		{"questions.schema", "simple", false},
		{"questions.schema", "wide", true},
		{"model", "a\nb", true},
		{"no-such-key", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := checkValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkValue(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSetProjectValue(t *testing.T) {
	tmpDir := t.TempDir()
	cfgDir := filepath.Join(tmpDir, DirName)
	if err := os.MkdirAll(cfgDir, 0o750); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(cfgDir, "config.yaml")
	initial := "# Orchestrator config\n# doc-type: requirements\nregistry: handlers.yaml\n"
	if err := os.WriteFile(configPath, []byte(initial), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(tmpDir)

	path, err := SetProjectValue("doc-type", "design")
	if err != nil {
		t.Fatalf("SetProjectValue() error = %v", err)
	}
	if got, _ := filepath.EvalSymlinks(path); got != mustEval(t, configPath) {
		t.Errorf("wrote %s, want %s", path, configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	s := string(content)
	if !strings.Contains(s, "doc-type: \"design\"") || strings.Contains(s, "# doc-type") {
		t.Errorf("doc-type not updated in place:\n%s", s)
	}
	if !strings.Contains(s, "registry: handlers.yaml") {
		t.Errorf("other settings lost:\n%s", s)
	}

	// The written file must round-trip through Initialize.
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if DocType() != "design" {
		t.Errorf("DocType() = %q after set", DocType())
	}

	if _, err := SetProjectValue("bogus", "1"); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestSetProjectValueCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, DirName), 0o750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(tmpDir)

	if _, err := SetProjectValue("max-steps", "4"); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(filepath.Join(tmpDir, DirName, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "max-steps: 4\n" {
		t.Errorf("content = %q", content)
	}
}

func TestSetProjectValueOutsideProject(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := SetProjectValue("json", "true"); !errors.Is(err, ErrNoProject) {
		t.Errorf("expected ErrNoProject, got %v", err)
	}
}

func mustEval(t *testing.T, p string) string {
	t.Helper()
	got, err := filepath.EvalSymlinks(p)
	if err != nil {
		t.Fatal(err)
	}
	return got
}
