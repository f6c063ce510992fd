package entities

import (
	"fmt"
	"strings"
)

// Severity is the three-level classification attached to every interaction rule.
// It is only used for display prioritization, the matcher never computes it.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// Severities lists the valid severities from least to most serious
var Severities = []Severity{SeverityMinor, SeverityModerate, SeverityMajor}

// ParseSeverity parses a severity label, ignoring case and surrounding spaces
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityMinor:
		return SeverityMinor, nil
	case SeverityModerate:
		return SeverityModerate, nil
	case SeverityMajor:
		return SeverityMajor, nil
	}
	return "", fmt.Errorf("unknown severity %q, expected one of %v", s, Severities)
}

// Rank orders severities: major=3, moderate=2, minor=1, anything else 0
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// InteractionRule is a curated record describing a clinically significant interaction
// between two named medications. DrugA and DrugB are unordered.
type InteractionRule struct {
	ID              string   `json:"id,omitempty" yaml:"id,omitempty"`
	DrugA           string   `json:"drug_a" yaml:"drug_a" validate:"required,max=100"`
	DrugB           string   `json:"drug_b" yaml:"drug_b" validate:"required,max=100"`
	Severity        Severity `json:"severity" yaml:"severity" validate:"required,oneof=minor moderate major"`
	Description     string   `json:"description" yaml:"description" validate:"required,max=2000"`
	ClinicalEffects string   `json:"clinical_effects" yaml:"clinical_effects" validate:"max=2000"`
	Management      string   `json:"management" yaml:"management" validate:"max=2000"`
	Source          string   `json:"source,omitempty" yaml:"-"`
}

// PairKey returns a case-insensitive key identifying the unordered drug pair of the rule
func (r InteractionRule) PairKey() string {
	a := strings.ToLower(strings.TrimSpace(r.DrugA))
	b := strings.ToLower(strings.TrimSpace(r.DrugB))
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
