// Package interactions detects known interactions between medications selected together.
// Matching is a pure name-pair classification over a reference table supplied by the caller:
// every unordered pair of selected names is tested against the table, exact names first,
// then case-insensitive substring containment in either direction.
package interactions

import (
	"strings"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
)

// InteractionRuleSource supplies the reference table the matcher runs against
type InteractionRuleSource interface {
	Rules() []entities.InteractionRule
}

// StaticRules adapts a plain slice to InteractionRuleSource
type StaticRules []entities.InteractionRule

// Rules returns the slice itself
func (s StaticRules) Rules() []entities.InteractionRule {
	return s
}

// Pair is an unordered pair of selected medication names, First selected before Second
type Pair struct {
	First  string
	Second string
}

// Pairs enumerates every unordered pair of distinct names, in selection order.
// Names equal as plain strings are never paired with each other.
func Pairs(selected []string) []Pair {
	if len(selected) < 2 {
		return []Pair{}
	}

	pairs := make([]Pair, 0, len(selected)*(len(selected)-1)/2)
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			if selected[i] == selected[j] {
				continue
			}
			pairs = append(pairs, Pair{First: selected[i], Second: selected[j]})
		}
	}
	return pairs
}

// loweredRule holds the lowercased drug names of a rule, computed once per Match call
type loweredRule struct {
	a, b string
}

// Match returns one MatchResult per selected pair that has a rule in the table.
// Results follow pair order. The returned slice is never nil.
func Match(selected []string, rules []entities.InteractionRule) []entities.MatchResult {
	results := make([]entities.MatchResult, 0)
	if len(selected) < 2 || len(rules) == 0 {
		return results
	}

	lowered := make([]loweredRule, len(rules))
	for i := range rules {
		lowered[i] = loweredRule{
			a: strings.ToLower(rules[i].DrugA),
			b: strings.ToLower(rules[i].DrugB),
		}
	}

	for _, pair := range Pairs(selected) {
		if result, ok := matchPair(pair, rules, lowered); ok {
			results = append(results, result)
		}
	}

	return results
}

// matchPair finds the first rule for a pair, exact names taking precedence over containment
func matchPair(pair Pair, rules []entities.InteractionRule, lowered []loweredRule) (entities.MatchResult, bool) {
	x, y := pair.First, pair.Second

	for i := range rules {
		if exactMatch(x, y, rules[i].DrugA, rules[i].DrugB) {
			return newResult(pair, rules[i], entities.MatchExact), true
		}
	}

	lx, ly := strings.ToLower(x), strings.ToLower(y)
	for i := range rules {
		if fuzzyMatch(lx, ly, lowered[i].a, lowered[i].b) {
			return newResult(pair, rules[i], entities.MatchFuzzy), true
		}
	}

	return entities.MatchResult{}, false
}

func exactMatch(x, y, a, b string) bool {
	return (x == a && y == b) || (x == b && y == a)
}

// fuzzyMatch expects every argument already lowercased
func fuzzyMatch(x, y, a, b string) bool {
	switch {
	case strings.Contains(x, a) && strings.Contains(y, b):
		return true
	case strings.Contains(x, b) && strings.Contains(y, a):
		return true
	case strings.Contains(a, x) && strings.Contains(b, y):
		return true
	case strings.Contains(b, x) && strings.Contains(a, y):
		return true
	}
	return false
}

func newResult(pair Pair, rule entities.InteractionRule, kind entities.MatchKind) entities.MatchResult {
	return entities.MatchResult{
		MedicationA: pair.First,
		MedicationB: pair.Second,
		Rule:        rule,
		MatchedBy:   kind,
	}
}
