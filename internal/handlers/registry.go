// Package handlers loads the handler registry: the per doc type, per target
// processing configuration.
//
// The registry file maps doc_type -> target -> fields. Entries may be
// partial; missing fields are filled from the _default entries. Lookup
// resolves a section target through this chain, later entries overriding
// earlier ones:
//
//	built-in defaults
//	_default._default
//	_default.<target>
//	<doc_type>._default
//	<doc_type>.<target>
//
// Review gate targets skip the _default._default and <doc_type>._default
// entries and start from the built-in gate defaults.
//
// A _default entry may also carry table_schemas, the exact header of tables
// other than the questions table. <doc_type>._default schemas override
// _default._default ones table by table.
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/types"
)

// DefaultKey names the fallback entry at both levels of the registry.
const DefaultKey = "_default"

// Format is a registry file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the encoding from a file extension. Anything that is
// not .toml is read as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// entry is one partially specified handler config as written in the file.
type entry struct {
	Mode                *string  `yaml:"mode" toml:"mode"`
	OutputFormat        *string  `yaml:"output_format" toml:"output_format"`
	Subsections         *bool    `yaml:"subsections" toml:"subsections"`
	RequiredSubsections []string `yaml:"required_subsections" toml:"required_subsections"`
	Dedupe              *bool    `yaml:"dedupe" toml:"dedupe"`
	PreserveHeaders     []string `yaml:"preserve_headers" toml:"preserve_headers"`
	SanitizeRemove      []string `yaml:"sanitize_remove" toml:"sanitize_remove"`
	Scope               *string  `yaml:"scope" toml:"scope"`
	AutoApplyPatches    *string  `yaml:"auto_apply_patches" toml:"auto_apply_patches"`
	ReviewRules         []string `yaml:"review_rules" toml:"review_rules"`
	Optional            *bool    `yaml:"optional" toml:"optional"`

	TableSchemas map[string][]string `yaml:"table_schemas" toml:"table_schemas"`
}

// apply overlays the set fields of e onto cfg. Enum values are parsed here,
// so an invalid value fails at load time.
func (e entry) apply(cfg types.HandlerConfig) (types.HandlerConfig, error) {
	if e.Mode != nil {
		m, err := types.ParseMode(*e.Mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
	}
	if e.OutputFormat != nil {
		f, err := types.ParseOutputFormat(*e.OutputFormat)
		if err != nil {
			return cfg, err
		}
		cfg.OutputFormat = f
	}
	if e.Scope != nil {
		s, err := types.ParseScope(*e.Scope)
		if err != nil {
			return cfg, err
		}
		cfg.Scope = s
	}
	if e.AutoApplyPatches != nil {
		p, err := types.ParseApplyPolicy(*e.AutoApplyPatches)
		if err != nil {
			return cfg, err
		}
		cfg.AutoApplyPatches = p
	}
	if e.Subsections != nil {
		cfg.Subsections = *e.Subsections
	}
	if e.Dedupe != nil {
		cfg.Dedupe = *e.Dedupe
	}
	if e.Optional != nil {
		cfg.Optional = *e.Optional
	}
	if e.RequiredSubsections != nil {
		cfg.RequiredSubsections = append([]string(nil), e.RequiredSubsections...)
	}
	if e.PreserveHeaders != nil {
		cfg.PreserveHeaders = append([]string(nil), e.PreserveHeaders...)
	}
	if e.SanitizeRemove != nil {
		cfg.SanitizeRemove = append([]string(nil), e.SanitizeRemove...)
	}
	if e.ReviewRules != nil {
		cfg.ReviewRules = append([]string(nil), e.ReviewRules...)
	}
	return cfg, nil
}

// Registry is an immutable, validated handler registry.
type Registry struct {
	entries map[string]map[string]entry
	source  string
}

// Empty returns a registry with only the built-in defaults.
func Empty() *Registry {
	return &Registry{entries: map[string]map[string]entry{}}
}

// Load reads a registry file, choosing the decoder from its extension.
func Load(path string) (*Registry, error) {
	// #nosec G304 - registry path comes from trusted config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read handler registry: %w", err)
	}
	r, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.source = path
	return r, nil
}

// Parse decodes and validates registry data.
func Parse(data []byte, format Format) (*Registry, error) {
	raw := map[string]map[string]entry{}
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse handler registry: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown handler registry field %q", undecoded[0].String())
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse handler registry: %w", err)
		}
	}

	r := &Registry{entries: raw}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}

// check resolves every entry once so bad enum values surface at load time.
func (r *Registry) check() error {
	for _, docType := range r.DocTypes() {
		targets := r.entries[docType]
		names := make([]string, 0, len(targets))
		for name := range targets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := checkTableSchemas(name, targets[name].TableSchemas); err != nil {
				return fmt.Errorf("%s.%s: %w", docType, name, err)
			}
			base := types.DefaultHandlerConfig()
			if types.IsReviewGate(name) {
				base = types.DefaultGateConfig()
			}
			cfg, err := targets[name].apply(base)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", docType, name, err)
			}
			isGate := types.IsReviewGate(name)
			switch {
			case isGate && cfg.Mode != types.ModeReviewGate:
				return fmt.Errorf("%s.%s: review gate targets must use mode %s", docType, name, types.ModeReviewGate)
			case !isGate && cfg.Mode == types.ModeReviewGate:
				return fmt.Errorf("%s.%s: mode %s is only valid for review gate targets", docType, name, types.ModeReviewGate)
			}
		}
	}
	return nil
}

func checkTableSchemas(name string, schemas map[string][]string) error {
	if len(schemas) == 0 {
		return nil
	}
	if name != DefaultKey {
		return fmt.Errorf("table_schemas is only valid on %s entries", DefaultKey)
	}
	for id, header := range schemas {
		if len(header) == 0 {
			return fmt.Errorf("table_schemas.%s: header is empty", id)
		}
		for _, col := range header {
			if strings.TrimSpace(col) == "" {
				return fmt.Errorf("table_schemas.%s: blank column name", id)
			}
		}
	}
	return nil
}

// Source is the file the registry was loaded from, empty for Empty().
func (r *Registry) Source() string {
	return r.source
}

// DocTypes lists the doc types declared in the file, sorted.
func (r *Registry) DocTypes() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the effective config for a workflow target.
func (r *Registry) Lookup(docType, target string) types.HandlerConfig {
	var chain []entry
	add := func(doc, name string) {
		if targets, ok := r.entries[doc]; ok {
			if e, ok := targets[name]; ok {
				chain = append(chain, e)
			}
		}
	}

	cfg := types.DefaultHandlerConfig()
	if types.IsReviewGate(target) {
		cfg = types.DefaultGateConfig()
		add(DefaultKey, target)
		add(docType, target)
	} else {
		add(DefaultKey, DefaultKey)
		add(DefaultKey, target)
		add(docType, DefaultKey)
		add(docType, target)
	}
	for _, e := range chain {
		// Entries were validated by check, so apply cannot fail here.
		cfg, _ = e.apply(cfg)
	}
	return cfg
}

// Modes returns a lookup of the handler mode of each target of docType.
func (r *Registry) Modes(docType string) func(target string) types.Mode {
	return func(target string) types.Mode {
		return r.Lookup(docType, target).Mode
	}
}

// TableSchemas returns the expected header of each configured table for
// docType.
func (r *Registry) TableSchemas(docType string) map[string][]string {
	out := make(map[string][]string)
	for _, doc := range []string{DefaultKey, docType} {
		e, ok := r.entries[doc][DefaultKey]
		if !ok {
			continue
		}
		for id, header := range e.TableSchemas {
			out[id] = append([]string(nil), header...)
		}
	}
	return out
}

// RequiredSubsections maps each section to the subsection ids its config
// requires, for sections whose config enables subsections.
func (r *Registry) RequiredSubsections(docType string, sectionIDs []string) map[string][]string {
	out := make(map[string][]string)
	for _, id := range sectionIDs {
		cfg := r.Lookup(docType, id)
		if cfg.Subsections && len(cfg.RequiredSubsections) > 0 {
			out[id] = cfg.RequiredSubsections
		}
	}
	return out
}
