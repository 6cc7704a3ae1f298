package entities

import (
	"fmt"
	"sort"
	"strings"
)

// Category identifies which consistency rule a violation breached.
type Category string

const (
	CategoryFactionName   Category = "faction_name"
	CategoryCharacterName Category = "character_name"
	CategoryPowerSystem   Category = "power_system"
	CategoryCultivation   Category = "cultivation_speed"
	CategoryConstitution  Category = "constitution"
	CategoryPlotLogic     Category = "plot_logic"
	// CategoryExtractionGap is advisory only: expected entities were
	// entirely absent from a chapter. Absence of evidence is not evidence
	// of violation.
	CategoryExtractionGap Category = "extraction_gap"
)

// Severity grades a violation. Only severities at or above the configured
// blocking threshold stop a chapter from committing.
type Severity int

const (
	SeverityAdvisory Severity = iota
	SeverityWarning
	SeverityHigh
)

// String renders the severity for reports and configuration.
func (s Severity) String() string {
	switch s {
	case SeverityAdvisory:
		return "advisory"
	case SeverityWarning:
		return "warning"
	case SeverityHigh:
		return "high"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a configuration string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "advisory", "info":
		return SeverityAdvisory, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "high", "critical":
		return SeverityHigh, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// Violation is one detected breach of a consistency rule.
type Violation struct {
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	EntityKey string   `json:"entity_key,omitempty"`
	Detail    string   `json:"detail"`
	Evidence  Span     `json:"evidence"`
}

// ConstraintCallout renders the violation as a natural-language instruction
// for the regeneration prompt.
func (v Violation) ConstraintCallout() string {
	return fmt.Sprintf("Previous draft violated a %s constraint: %s. Do not repeat this.",
		strings.ReplaceAll(string(v.Category), "_", " "), v.Detail)
}

// IdentityLink proposes that two entity keys are the same in-story person,
// backed by an explicit reveal in the chapter text.
type IdentityLink struct {
	CanonicalKey string `json:"canonical_key"`
	OtherKey     string `json:"other_key"`
}

// ValidationReport is the Checker's output for one chapter: all detected
// violations plus the facts the Workflow Gate may commit if it accepts the
// report. The Checker never commits anything itself.
type ValidationReport struct {
	ChapterIndex int            `json:"chapter_index"`
	Violations   []Violation    `json:"violations,omitempty"`
	Proposed     []FactRecord   `json:"proposed,omitempty"`
	Identities   []IdentityLink `json:"identities,omitempty"`
}

// Add appends a violation to the report.
func (r *ValidationReport) Add(v Violation) {
	r.Violations = append(r.Violations, v)
}

// Blocking reports whether any violation meets the given severity threshold.
func (r *ValidationReport) Blocking(threshold Severity) bool {
	for _, v := range r.Violations {
		if v.Severity >= threshold {
			return true
		}
	}
	return false
}

// BlockingViolations returns the violations at or above the threshold.
func (r *ValidationReport) BlockingViolations(threshold Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity >= threshold {
			out = append(out, v)
		}
	}
	return out
}

// Summary returns the violations sorted by descending severity. Detection
// order is preserved within each severity; duplicates for the same entity
// are intentionally kept.
func (r *ValidationReport) Summary() []Violation {
	out := make([]Violation, len(r.Violations))
	copy(out, r.Violations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}
