package interactions

import (
	"slices"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
)

// Report is what a check hands back to the UI: the interaction cards and the badge counts
type Report struct {
	Medications  []string                  `json:"medications"`
	PairsChecked int                       `json:"pairs_checked"`
	Count        int                       `json:"count"`
	BySeverity   map[entities.Severity]int `json:"by_severity"`
	Interactions []entities.MatchResult    `json:"interactions"`
}

// Matcher runs Match against an injected rule source
type Matcher struct {
	source InteractionRuleSource
}

// NewMatcher creates a matcher reading its reference table from source
func NewMatcher(source InteractionRuleSource) *Matcher {
	return &Matcher{source: source}
}

// Check matches the selection against the current table and summarises the outcome
func (m *Matcher) Check(selection SelectionSet) Report {
	names := selection.Names()
	results := Match(names, m.source.Rules())

	return Report{
		Medications:  names,
		PairsChecked: len(Pairs(names)),
		Count:        len(results),
		BySeverity:   CountBySeverity(results),
		Interactions: results,
	}
}

// CountBySeverity counts results per severity; every known severity is present
func CountBySeverity(results []entities.MatchResult) map[entities.Severity]int {
	counts := make(map[entities.Severity]int, len(entities.Severities))
	for _, sev := range entities.Severities {
		counts[sev] = 0
	}
	for _, r := range results {
		counts[r.Rule.Severity]++
	}
	return counts
}

// SortForDisplay orders results most severe first, keeping pair order within a severity
func SortForDisplay(results []entities.MatchResult) {
	slices.SortStableFunc(results, func(a, b entities.MatchResult) int {
		return b.Rule.Severity.Rank() - a.Rule.Severity.Rank()
	})
}
