package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the subset of config.yaml read directly from a project
// directory rather than through the viper singleton. The MCP server uses it
// for the project it was started against, which need not be the working
// directory.
type LocalConfig struct {
	DocType    string `yaml:"doc-type"`
	Registry   string `yaml:"registry"`
	ProfileDir string `yaml:"profile-dir"`
	Questions  struct {
		Schema          string            `yaml:"schema"`
		SchemaByDocType map[string]string `yaml:"schema-by-doc-type"`
	} `yaml:"questions"`
	Gates struct {
		WarningsBlockStrict bool `yaml:"warnings-block-strict"`
	} `yaml:"gates"`
}

// LoadLocalConfig reads <projectDir>/.orchestrator/config.yaml. Missing or
// unparsable files yield the defaults rather than an error.
func LoadLocalConfig(projectDir string) *LocalConfig {
	cfg := &LocalConfig{
		DocType:    "requirements",
		Registry:   filepath.Join(DirName, "handlers.yaml"),
		ProfileDir: filepath.Join(DirName, "profiles"),
	}
	data, err := os.ReadFile(filepath.Join(projectDir, DirName, "config.yaml")) // #nosec G304 - project config path
	if err != nil {
		return cfg
	}
	loaded := *cfg
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg
	}
	if loaded.DocType == "" {
		loaded.DocType = cfg.DocType
	}
	if loaded.Registry == "" {
		loaded.Registry = cfg.Registry
	}
	if loaded.ProfileDir == "" {
		loaded.ProfileDir = cfg.ProfileDir
	}
	return &loaded
}

// Path resolves a configured path against projectDir.
func (c *LocalConfig) Path(projectDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectDir, p)
}

// SchemaFor mirrors QuestionSchema's lookup order without validating.
func (c *LocalConfig) SchemaFor(docType string) string {
	if s, ok := c.Questions.SchemaByDocType[docType]; ok {
		return s
	}
	return c.Questions.Schema
}
