package types

import (
	"fmt"
	"strings"
)

// Mode selects how a workflow target is processed.
type Mode string

const (
	ModeIntegrateThenQuestions Mode = "integrate_then_questions"
	ModeQuestionsThenIntegrate Mode = "questions_then_integrate"
	ModeReviewGate             Mode = "review_gate"
)

// ParseMode parses a registry value into a Mode. Unknown values are rejected
// at load time rather than falling through at run time.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeIntegrateThenQuestions, ModeQuestionsThenIntegrate, ModeReviewGate:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (valid: integrate_then_questions, questions_then_integrate, review_gate)", s)
}

// FollowUpQuestions reports whether a section may receive new questions after
// a successful integration. This is the only behavioral difference between
// the two section modes.
func (m Mode) FollowUpQuestions() bool {
	return m == ModeIntegrateThenQuestions
}

// OutputFormat is the expected shape of integrated section content.
type OutputFormat string

const (
	FormatProse       OutputFormat = "prose"
	FormatBullets     OutputFormat = "bullets"
	FormatSubsections OutputFormat = "subsections"
)

// ParseOutputFormat parses a registry value into an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.TrimSpace(s)); f {
	case FormatProse, FormatBullets, FormatSubsections:
		return f, nil
	}
	return "", fmt.Errorf("unknown output_format %q (valid: prose, bullets, subsections)", s)
}

// ScopeKind selects which sections a handler (or review gate) reads.
type ScopeKind string

const (
	ScopeCurrentSection   ScopeKind = "current_section"
	ScopeAllPriorSections ScopeKind = "all_prior_sections"
	ScopeEntireDocument   ScopeKind = "entire_document"
	ScopeSections         ScopeKind = "sections"
)

// Scope is a parsed scope value. Sections is only set for ScopeSections.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	Sections []string  `json:"sections,omitempty"`
}

// ParseScope parses "current_section", "all_prior_sections",
// "entire_document" or "sections:A,B,C".
func ParseScope(s string) (Scope, error) {
	trimmed := strings.TrimSpace(s)
	switch ScopeKind(trimmed) {
	case ScopeCurrentSection, ScopeAllPriorSections, ScopeEntireDocument:
		return Scope{Kind: ScopeKind(trimmed)}, nil
	}
	if rest, ok := strings.CutPrefix(trimmed, string(ScopeSections)+":"); ok {
		var ids []string
		for _, part := range strings.Split(rest, ",") {
			if id := strings.TrimSpace(part); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return Scope{}, fmt.Errorf("scope %q lists no sections", s)
		}
		return Scope{Kind: ScopeSections, Sections: ids}, nil
	}
	return Scope{}, fmt.Errorf("unknown scope %q (valid: current_section, all_prior_sections, entire_document, sections:A,B)", s)
}

func (s Scope) String() string {
	if s.Kind == ScopeSections {
		return string(ScopeSections) + ":" + strings.Join(s.Sections, ",")
	}
	return string(s.Kind)
}

// ApplyPolicy controls whether review gate patches are applied automatically.
type ApplyPolicy string

const (
	ApplyNever              ApplyPolicy = "never"
	ApplyAlways             ApplyPolicy = "always"
	ApplyIfValidationPasses ApplyPolicy = "if_validation_passes"
)

// ParseApplyPolicy parses a registry value into an ApplyPolicy.
func ParseApplyPolicy(s string) (ApplyPolicy, error) {
	switch p := ApplyPolicy(strings.TrimSpace(s)); p {
	case ApplyNever, ApplyAlways, ApplyIfValidationPasses:
		return p, nil
	}
	return "", fmt.Errorf("unknown auto_apply_patches %q (valid: never, always, if_validation_passes)", s)
}

// HandlerConfig is the declarative processing descriptor for one target.
// Values are immutable once loaded by the handler registry.
type HandlerConfig struct {
	Mode                Mode         `json:"mode"`
	OutputFormat        OutputFormat `json:"output_format"`
	Subsections         bool         `json:"subsections"`
	RequiredSubsections []string     `json:"required_subsections,omitempty"`
	Dedupe              bool         `json:"dedupe"`
	PreserveHeaders     []string     `json:"preserve_headers,omitempty"`
	SanitizeRemove      []string     `json:"sanitize_remove,omitempty"`
	Scope               Scope        `json:"scope"`
	AutoApplyPatches    ApplyPolicy  `json:"auto_apply_patches"`
	ReviewRules         []string     `json:"review_rules,omitempty"`
	// Optional sections are not required to be placeholder-free for completion.
	Optional bool `json:"optional,omitempty"`
}

// DefaultHandlerConfig is used when neither the doc type nor the global
// registry supplies a _default entry.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Mode:             ModeIntegrateThenQuestions,
		OutputFormat:     FormatProse,
		Dedupe:           true,
		Scope:            Scope{Kind: ScopeCurrentSection},
		AutoApplyPatches: ApplyNever,
	}
}

// DefaultGateConfig is the implied config of a review gate without a registry entry.
func DefaultGateConfig() HandlerConfig {
	return HandlerConfig{
		Mode:             ModeReviewGate,
		OutputFormat:     FormatProse,
		Scope:            Scope{Kind: ScopeAllPriorSections},
		AutoApplyPatches: ApplyNever,
	}
}
