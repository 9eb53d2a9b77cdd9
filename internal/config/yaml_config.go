package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/validation"
)

// ErrNoProject is returned when no .orchestrator directory is found.
var ErrNoProject = errors.New("no .orchestrator directory found (create one in the project root first)")

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindDuration
	kindSchema
)

// knownKeys are the keys `orchestrator config set` may write. Anything else
// is rejected so typos don't silently land in config.yaml.
var knownKeys = map[string]keyKind{
	"doc-type":                    kindString,
	"registry":                    kindString,
	"profile-dir":                 kindString,
	"model":                       kindString,
	"max-steps":                   kindInt,
	"backup-dir":                  kindString,
	"json":                        kindBool,
	"questions.schema":            kindSchema,
	"gates.warnings-block-strict": kindBool,
	"llm.max-retries":             kindInt,
	"llm.max-tokens":              kindInt,
	"llm.timeout":                 kindDuration,
	"watch.debounce":              kindDuration,
}

// KnownKeys returns the settable keys in sorted order.
func KnownKeys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key can be set with SetProjectValue.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

func checkValue(key, value string) error {
	kind, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(KnownKeys(), ", "))
	}
	var err error
	switch kind {
	case kindBool:
		_, err = strconv.ParseBool(value)
	case kindInt:
		var n int
		n, err = strconv.Atoi(value)
		if err == nil && n < 1 {
			err = fmt.Errorf("must be at least 1")
		}
	case kindDuration:
		_, err = time.ParseDuration(value)
	case kindSchema:
		_, err = validation.ParseSchemaVariant(value)
	case kindString:
		if strings.ContainsAny(value, "\r\n") {
			err = fmt.Errorf("must be a single line")
		}
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// SetProjectValue writes key into the project's .orchestrator/config.yaml,
// creating the file if needed. Existing (possibly commented) entries for the
// key are updated in place.
func SetProjectValue(key, value string) (string, error) {
	if err := checkValue(key, value); err != nil {
		return "", err
	}
	configPath, err := findProjectConfigYaml()
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(configPath) // #nosec G304 - path from findProjectConfigYaml
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read config.yaml: %w", err)
	}

	newContent, err := updateYamlKey(string(content), key, value)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(newContent, "\n") {
		newContent += "\n"
	}

	if err := os.WriteFile(configPath, []byte(newContent), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return configPath, nil
}

// findProjectConfigYaml returns the project's config.yaml path. The file
// itself need not exist yet, only the .orchestrator directory.
func findProjectConfigYaml() (string, error) {
	root, ok := findProjectRoot()
	if !ok {
		return "", ErrNoProject
	}
	return filepath.Join(root, DirName, "config.yaml"), nil
}

// updateYamlKey updates a key in yaml content, handling commented-out keys.
// If the key exists (commented or not), it updates it in place.
// If the key doesn't exist, it appends it at the end.
//
//nolint:unparam // error return kept for future validation
func updateYamlKey(content, key, value string) (string, error) {
	newLine := fmt.Sprintf("%s: %s", key, formatYamlValue(value))

	// Matches: "key: value" or "# key: value" with optional leading whitespace
	keyPattern := regexp.MustCompile(`^(\s*)(#\s*)?` + regexp.QuoteMeta(key) + `\s*:`)

	found := false
	var result []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if !found {
			if m := keyPattern.FindStringSubmatch(line); m != nil {
				result = append(result, m[1]+newLine)
				found = true
				continue
			}
		}
		result = append(result, line)
	}

	if !found {
		if len(result) > 0 && result[len(result)-1] != "" {
			result = append(result, "")
		}
		result = append(result, newLine)
	}

	return strings.Join(result, "\n"), nil
}

// formatYamlValue formats a value appropriately for YAML.
func formatYamlValue(value string) string {
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower
	}
	if isNumeric(value) || isDuration(value) {
		return value
	}
	// Strings are always quoted so values like "no" or "null" stay strings.
	return fmt.Sprintf("%q", value)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDuration(s string) bool {
	if len(s) < 2 {
		return false
	}
	if _, err := time.ParseDuration(s); err != nil {
		return false
	}
	return true
}
