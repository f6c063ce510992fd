package entities

// MatchKind tells which strategy confirmed a rule for a pair
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// MatchResult is an InteractionRule confirmed to apply to two selected medications.
// MedicationA and MedicationB keep the selected names exactly as the user chose them.
type MatchResult struct {
	MedicationA string          `json:"medication_a"`
	MedicationB string          `json:"medication_b"`
	Rule        InteractionRule `json:"rule"`
	MatchedBy   MatchKind       `json:"matched_by"`
}
