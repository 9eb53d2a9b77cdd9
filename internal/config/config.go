// Package config holds the orchestrator's viper-backed settings.
//
// Precedence, highest first: flags bound by the CLI, ORCH_* environment
// variables, the project config (.orchestrator/config.yaml, found by walking
// up from the working directory), the user config
// (~/.config/orchestrator/config.yaml), then the defaults below.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

// DirName is the per-project configuration directory.
const DirName = ".orchestrator"

const envPrefix = "ORCH"

var (
	v           *viper.Viper
	projectRoot string
)

// Initialize sets up the viper singleton. It is safe to call again; every
// call starts from a fresh instance.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	projectRoot = ""
	if root, ok := findProjectRoot(); ok {
		projectRoot = root
		path := filepath.Join(root, DirName, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
		}
	}
	if v.ConfigFileUsed() == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(dir, "orchestrator", "config.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
			}
		}
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("doc-type", "requirements")
	v.SetDefault("registry", filepath.Join(DirName, "handlers.yaml"))
	v.SetDefault("profile-dir", filepath.Join(DirName, "profiles"))
	v.SetDefault("model", "claude-haiku-4-5")
	v.SetDefault("max-steps", 10)
	v.SetDefault("backup-dir", "")
	v.SetDefault("json", false)
	v.SetDefault("questions.schema", string(validation.SchemaAuto))
	v.SetDefault("questions.schema-by-doc-type", map[string]string{})
	v.SetDefault("gates.warnings-block-strict", false)
	v.SetDefault("llm.max-retries", 3)
	v.SetDefault("llm.max-tokens", 4096)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("watch.debounce", 500*time.Millisecond)
}

// ResetForTesting drops the singleton so the next getter sees zero values.
func ResetForTesting() {
	v = nil
	projectRoot = ""
}

// findProjectRoot walks up from the working directory to the first
// directory containing .orchestrator/.
func findProjectRoot() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, true
		}
		if filepath.Dir(dir) == dir {
			return "", false
		}
	}
}

// ProjectRoot returns the directory holding .orchestrator/, or "".
func ProjectRoot() string {
	return projectRoot
}

// ConfigFileUsed returns the config file that was read, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// ResolvePath makes a configured relative path relative to the project
// root, or the working directory outside a project.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || projectRoot == "" {
		return p
	}
	return filepath.Join(projectRoot, p)
}

// Set overrides a value, typically from a command-line flag.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringMapString retrieves a map of strings
func GetStringMapString(key string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v.GetStringMapString(key)
}

// DocType is the default document type.
func DocType() string { return GetString("doc-type") }

// Model is the Anthropic model used by the collaborator.
func Model() string { return GetString("model") }

// MaxSteps bounds a single run.
func MaxSteps() int { return GetInt("max-steps") }

// RegistryPath is the resolved handler registry path.
func RegistryPath() string { return ResolvePath(GetString("registry")) }

// ProfileDir is the resolved directory of doc type profiles.
func ProfileDir() string { return ResolvePath(GetString("profile-dir")) }

// WarningsBlockStrict reports whether gate warnings fail completion in
// strict mode.
func WarningsBlockStrict() bool { return GetBool("gates.warnings-block-strict") }

// BackupDir is where document backups go. It defaults to a directory in the
// user cache, outside any versioned tree.
func BackupDir() string {
	if dir := GetString("backup-dir"); dir != "" {
		return ResolvePath(dir)
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	return filepath.Join(cache, "orchestrator", "backups")
}

// QuestionSchema returns the questions table schema variant for a doc type.
// A per doc type entry wins over the global setting.
func QuestionSchema(docType string) (validation.SchemaVariant, error) {
	if s, ok := GetStringMapString("questions.schema-by-doc-type")[strings.ToLower(docType)]; ok {
		return validation.ParseSchemaVariant(s)
	}
	return validation.ParseSchemaVariant(GetString("questions.schema"))
}
