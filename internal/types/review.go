package types

import (
	"strings"
)

// Severity of a review issue.
type Severity string

const (
	SeverityBlocker Severity = "blocker"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// NormalizeSeverity maps collaborator spellings onto the known severities.
// Anything unrecognized is treated as a warning so it is surfaced but does
// not block.
func NormalizeSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blocker", "blocking", "critical", "error":
		return SeverityBlocker
	case "info", "note", "suggestion":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// Issue is one finding reported by a review gate.
type Issue struct {
	Severity    Severity `json:"severity"`
	Section     string   `json:"section,omitempty"`
	Description string   `json:"description"`
}

// Patch is a suggested replacement for a section body.
type Patch struct {
	Section    string `json:"section"`
	Suggestion string `json:"suggestion"`
	Rationale  string `json:"rationale,omitempty"`
	Validated  bool   `json:"validated"`
	Reason     string `json:"reason,omitempty"` // why validation failed
}

// ReviewGateResult is the terminal record of one review gate execution.
type ReviewGateResult struct {
	GateID  string   `json:"gate_id"`
	Passed  bool     `json:"passed"`
	Issues  []Issue  `json:"issues,omitempty"`
	Patches []Patch  `json:"patches,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Applied []string `json:"applied,omitempty"` // sections whose bodies were patched
	Dropped []string `json:"dropped,omitempty"` // human-readable reasons patches were not applied
}

// Blockers counts blocker-severity issues.
func (r *ReviewGateResult) Blockers() int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Severity == SeverityBlocker {
			n++
		}
	}
	return n
}

// Warnings counts warning-severity issues.
func (r *ReviewGateResult) Warnings() int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// GateStatus is the persisted status of a gate result marker.
type GateStatus string

const (
	GatePassed GateStatus = "passed"
	GateFailed GateStatus = "failed"
)

// GateRecord is a review gate result as persisted in the document.
type GateRecord struct {
	GateID   string     `json:"gate_id"`
	Status   GateStatus `json:"status"`
	Issues   int        `json:"issues"`
	Warnings int        `json:"warnings"`
	Line     int        `json:"line"` // 0-based line index of the marker
}

// Record converts a result into the persisted form.
func (r *ReviewGateResult) Record() GateRecord {
	status := GateFailed
	if r.Passed {
		status = GatePassed
	}
	return GateRecord{
		GateID:   r.GateID,
		Status:   status,
		Issues:   r.Blockers(),
		Warnings: r.Warnings(),
	}
}
