// Package validation checks loaded reference data and user input for the interactions API.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
)

const (
	minInputLength = 2
	maxInputLength = 100
	maxInputWords  = 8
	reportLimit    = 10
)

var (
	// Letters in any script plus the punctuation catalog names actually use,
	// e.g. "Epinephrine (1:1,000)" or "Dextrose 50%"
	inputRegex = regexp.MustCompile(`^[\p{L}\p{M}0-9\s\-\.,'\+/\(\):%]+$`)

	// strings.Contains on lowered input, faster than regex for fixed substrings
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "eval(", "expression(", "url(", "@import",
		// SQL injection
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "exec(", "execute(",
		// Command injection
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection
		"{$ne:", "{$gt:", "{$where:", "{$regex:",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	validate     *validator.Validate
	maxSelection int
}

// NewDataValidator creates a validator; maxSelection caps the names in one check
func NewDataValidator(maxSelection int) interfaces.DataValidator {
	return &DataValidatorImpl{
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		maxSelection: maxSelection,
	}
}

// ValidateStruct runs the struct tag rules and flattens the failures into one error
func (v *DataValidatorImpl) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s long", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ValidateRule checks if an interaction rule is well formed
func (v *DataValidatorImpl) ValidateRule(rule *entities.InteractionRule) error {
	if rule == nil {
		return fmt.Errorf("rule is nil")
	}

	a := strings.TrimSpace(rule.DrugA)
	b := strings.TrimSpace(rule.DrugB)
	if a == "" || b == "" {
		return fmt.Errorf("rule %q/%q: both drug names are required", rule.DrugA, rule.DrugB)
	}
	if strings.EqualFold(a, b) {
		return fmt.Errorf("rule pairs %q with itself", a)
	}
	if strings.TrimSpace(rule.Description) == "" {
		return fmt.Errorf("rule %s: description is required", rule.PairKey())
	}

	if err := v.ValidateStruct(rule); err != nil {
		return fmt.Errorf("rule %s: %w", rule.PairKey(), err)
	}
	return nil
}

// ValidateMedication checks if a catalog entry is well formed
func (v *DataValidatorImpl) ValidateMedication(m *entities.Medication) error {
	if m == nil {
		return fmt.Errorf("medication is nil")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("medication %q has no id", m.Name)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("empty name for medication %s", m.ID)
	}
	if err := v.ValidateStruct(m); err != nil {
		return fmt.Errorf("medication %s: %w", m.ID, err)
	}
	return nil
}

// ValidateDataIntegrity fails on the first problem that makes a table unusable
func (v *DataValidatorImpl) ValidateDataIntegrity(rules []entities.InteractionRule, medications []entities.Medication) error {
	if len(rules) == 0 {
		return fmt.Errorf("no interaction rules found")
	}

	for i := range rules {
		if err := v.ValidateRule(&rules[i]); err != nil {
			return fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
	}

	ids := make(map[string]bool, len(medications))
	for i := range medications {
		m := &medications[i]
		if err := v.ValidateMedication(m); err != nil {
			return fmt.Errorf("invalid medication at index %d: %w", i, err)
		}
		if ids[m.ID] {
			return fmt.Errorf("duplicate medication id found: %s", m.ID)
		}
		ids[m.ID] = true
	}

	return nil
}

// ReportDataQuality lists everything odd about a table without rejecting it.
// Detail lists are capped at ten entries, counts are exact.
func (v *DataValidatorImpl) ReportDataQuality(rules []entities.InteractionRule, medications []entities.Medication) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicatePairs:         []string{},
		SelfPairs:              []string{},
		InvalidRuleDetails:     []string{},
		UnknownDrugs:           []string{},
		DuplicateMedicationIDs: []string{},
	}

	// Check 1: catalog duplicate IDs and the set of known names
	ids := make(map[string]bool, len(medications))
	known := make(map[string]bool, len(medications))
	for _, m := range medications {
		if ids[m.ID] {
			report.DuplicateMedicationIDs = append(report.DuplicateMedicationIDs, m.ID)
		}
		ids[m.ID] = true
		known[strings.ToLower(strings.TrimSpace(m.Name))] = true
	}

	pairCount := make(map[string]int, len(rules))
	unknown := make(map[string]bool)

	for i := range rules {
		r := &rules[i]

		// Check 2: self pairs are reported separately from other invalid rules
		if strings.EqualFold(strings.TrimSpace(r.DrugA), strings.TrimSpace(r.DrugB)) && r.DrugA != "" {
			if len(report.SelfPairs) < reportLimit {
				report.SelfPairs = append(report.SelfPairs, r.DrugA)
			}
		}

		// Check 3: invalid rules
		if err := v.ValidateRule(r); err != nil {
			report.InvalidRules++
			if len(report.InvalidRuleDetails) < reportLimit {
				report.InvalidRuleDetails = append(report.InvalidRuleDetails, err.Error())
			}
			continue
		}

		// Check 4: duplicate unordered pairs
		pairCount[r.PairKey()]++

		// Check 5: rule drugs the catalog does not know. Only exact names count,
		// fuzzy matching still lets such a rule fire for longer catalog names.
		if len(medications) > 0 {
			missing := false
			for _, name := range []string{r.DrugA, r.DrugB} {
				key := strings.ToLower(strings.TrimSpace(name))
				if !known[key] {
					missing = true
					unknown[name] = true
				}
			}
			if missing {
				report.RulesWithUnknownDrugs++
			}
		}
	}

	for key, n := range pairCount {
		if n > 1 {
			report.DuplicatePairs = append(report.DuplicatePairs, key)
		}
	}
	sort.Strings(report.DuplicatePairs)

	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > reportLimit {
		names = names[:reportLimit]
	}
	report.UnknownDrugs = names

	if len(report.DuplicatePairs) > 0 {
		logging.Warn("Duplicate interaction pairs in reference table",
			"count", len(report.DuplicatePairs),
			"pairs", report.DuplicatePairs,
		)
	}

	return report
}

// ValidateInput validates search terms and medication names
func (v *DataValidatorImpl) ValidateInput(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len([]rune(trimmed)) < minInputLength {
		return fmt.Errorf("input too short: minimum %d characters", minInputLength)
	}

	if len([]rune(trimmed)) > maxInputLength {
		return fmt.Errorf("input too long: maximum %d characters", maxInputLength)
	}

	if len(strings.Fields(trimmed)) > maxInputWords {
		return fmt.Errorf("input too complex: maximum %d words allowed", maxInputWords)
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(trimmed) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and - . , ' + / ( ) : %% are allowed")
	}

	if hasExcessiveRepetition(trimmed) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateSelection validates the names of one check request
func (v *DataValidatorImpl) ValidateSelection(names []string) error {
	if len(names) > v.maxSelection {
		return fmt.Errorf("too many medications: maximum %d per check, got %d", v.maxSelection, len(names))
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if err := v.ValidateInput(name); err != nil {
			return fmt.Errorf("medication %q: %w", name, err)
		}
		if seen[name] {
			return fmt.Errorf("medication %q selected twice", name)
		}
		seen[name] = true
	}
	return nil
}

// hasExcessiveRepetition reports the same character eleven or more times in a row
func hasExcessiveRepetition(input string) bool {
	run := 1
	var prev rune = -1
	for _, r := range input {
		if r == prev {
			run++
			if run > 10 {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}
