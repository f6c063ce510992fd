package validation

import (
	"strings"
	"testing"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
)

func newValidator() *DataValidatorImpl {
	return NewDataValidator(5).(*DataValidatorImpl)
}

func validRule() entities.InteractionRule {
	return entities.InteractionRule{
		DrugA:           "Nitroglycerin",
		DrugB:           "Sildenafil",
		Severity:        entities.SeverityMajor,
		Description:     "Profound hypotension",
		ClinicalEffects: "Severe, refractory hypotension",
		Management:      "Withhold nitrates within 24h of sildenafil",
	}
}

func TestValidateRule_Valid(t *testing.T) {
	r := validRule()
	if err := newValidator().ValidateRule(&r); err != nil {
		t.Errorf("Expected valid rule, got %v", err)
	}
}

func TestValidateRule_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *entities.InteractionRule)
		wantErr string
	}{
		{"empty drug a", func(r *entities.InteractionRule) { r.DrugA = "  " }, "both drug names are required"},
		{"empty drug b", func(r *entities.InteractionRule) { r.DrugB = "" }, "both drug names are required"},
		{"self pair", func(r *entities.InteractionRule) { r.DrugB = "NITROGLYCERIN" }, "with itself"},
		{"unknown severity", func(r *entities.InteractionRule) { r.Severity = "severe" }, "severity must be one of"},
		{"missing severity", func(r *entities.InteractionRule) { r.Severity = "" }, "severity is required"},
		{"empty description", func(r *entities.InteractionRule) { r.Description = " " }, "description is required"},
		{"long drug name", func(r *entities.InteractionRule) { r.DrugA = strings.Repeat("a", 101) }, "druga must be at most 100"},
		{"long management", func(r *entities.InteractionRule) { r.Management = strings.Repeat("m", 2001) }, "management must be at most 2000"},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			err := v.ValidateRule(&r)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateRule_Nil(t *testing.T) {
	if err := newValidator().ValidateRule(nil); err == nil {
		t.Error("Expected error for nil rule")
	}
}

func TestValidateMedication(t *testing.T) {
	v := newValidator()

	good := entities.Medication{ID: "adenosine", Name: "Adenosine", Category: "Antiarrhythmic"}
	if err := v.ValidateMedication(&good); err != nil {
		t.Errorf("Expected valid medication, got %v", err)
	}

	for _, m := range []entities.Medication{
		{ID: "", Name: "Adenosine"},
		{ID: "adenosine", Name: "  "},
		{ID: "adenosine", Name: strings.Repeat("x", 201)},
	} {
		if err := v.ValidateMedication(&m); err == nil {
			t.Errorf("Expected error for %+v", m)
		}
	}

	if err := v.ValidateMedication(nil); err == nil {
		t.Error("Expected error for nil medication")
	}
}

func TestValidateDataIntegrity(t *testing.T) {
	v := newValidator()
	meds := []entities.Medication{{ID: "nitro", Name: "Nitroglycerin"}, {ID: "sildenafil", Name: "Sildenafil"}}

	if err := v.ValidateDataIntegrity([]entities.InteractionRule{validRule()}, meds); err != nil {
		t.Errorf("Expected valid data, got %v", err)
	}

	if err := v.ValidateDataIntegrity(nil, meds); err == nil || !strings.Contains(err.Error(), "no interaction rules") {
		t.Errorf("Expected empty table error, got %v", err)
	}

	bad := validRule()
	bad.Severity = "critical"
	if err := v.ValidateDataIntegrity([]entities.InteractionRule{validRule(), bad}, meds); err == nil || !strings.Contains(err.Error(), "index 1") {
		t.Errorf("Expected invalid rule at index 1, got %v", err)
	}

	dupes := append(meds, entities.Medication{ID: "nitro", Name: "Nitro spray"})
	if err := v.ValidateDataIntegrity([]entities.InteractionRule{validRule()}, dupes); err == nil || !strings.Contains(err.Error(), "duplicate medication id") {
		t.Errorf("Expected duplicate id error, got %v", err)
	}

	// an empty catalog is allowed, the matcher only needs the table
	if err := v.ValidateDataIntegrity([]entities.InteractionRule{validRule()}, nil); err != nil {
		t.Errorf("Expected empty catalog to be accepted, got %v", err)
	}
}

func TestReportDataQuality_CleanData(t *testing.T) {
	meds := []entities.Medication{{ID: "nitro", Name: "Nitroglycerin"}, {ID: "sildenafil", Name: "Sildenafil"}}
	report := newValidator().ReportDataQuality([]entities.InteractionRule{validRule()}, meds)

	if report.InvalidRules != 0 || report.RulesWithUnknownDrugs != 0 {
		t.Errorf("Expected a clean report, got %+v", report)
	}
	if len(report.DuplicatePairs) != 0 || len(report.SelfPairs) != 0 || len(report.DuplicateMedicationIDs) != 0 {
		t.Errorf("Expected empty lists, got %+v", report)
	}
	if report.UnknownDrugs == nil || report.InvalidRuleDetails == nil {
		t.Error("Lists should be empty, not nil, so they encode as []")
	}
}

func TestReportDataQuality_MultipleIssues(t *testing.T) {
	reversed := validRule()
	reversed.DrugA, reversed.DrugB = "sildenafil", "NITROGLYCERIN"

	self := validRule()
	self.DrugB = "Nitroglycerin"

	unknown := validRule()
	unknown.DrugA, unknown.DrugB = "Nitroglycerin", "Tadalafil"

	invalid := validRule()
	invalid.Severity = "lethal"

	rules := []entities.InteractionRule{validRule(), reversed, self, unknown, invalid}
	meds := []entities.Medication{
		{ID: "nitro", Name: "Nitroglycerin"},
		{ID: "sildenafil", Name: "Sildenafil"},
		{ID: "nitro", Name: "Nitroglycerin Spray"},
	}

	report := newValidator().ReportDataQuality(rules, meds)

	if len(report.DuplicatePairs) != 1 || report.DuplicatePairs[0] != "nitroglycerin|sildenafil" {
		t.Errorf("Expected one duplicate pair, got %v", report.DuplicatePairs)
	}
	if len(report.SelfPairs) != 1 {
		t.Errorf("Expected one self pair, got %v", report.SelfPairs)
	}
	// self pair and unknown severity are both invalid
	if report.InvalidRules != 2 || len(report.InvalidRuleDetails) != 2 {
		t.Errorf("Expected 2 invalid rules, got %d (%v)", report.InvalidRules, report.InvalidRuleDetails)
	}
	if report.RulesWithUnknownDrugs != 1 || len(report.UnknownDrugs) != 1 || report.UnknownDrugs[0] != "Tadalafil" {
		t.Errorf("Expected Tadalafil unknown, got %d %v", report.RulesWithUnknownDrugs, report.UnknownDrugs)
	}
	if len(report.DuplicateMedicationIDs) != 1 || report.DuplicateMedicationIDs[0] != "nitro" {
		t.Errorf("Expected duplicate id nitro, got %v", report.DuplicateMedicationIDs)
	}
}

func TestReportDataQuality_DetailsCappedAtTen(t *testing.T) {
	var rules []entities.InteractionRule
	for i := 0; i < 15; i++ {
		r := validRule()
		r.Severity = "bad"
		rules = append(rules, r)
	}

	report := newValidator().ReportDataQuality(rules, nil)

	if report.InvalidRules != 15 {
		t.Errorf("Expected exact count 15, got %d", report.InvalidRules)
	}
	if len(report.InvalidRuleDetails) != 10 {
		t.Errorf("Expected 10 details, got %d", len(report.InvalidRuleDetails))
	}
}

func TestReportDataQuality_EmptyCatalogSkipsUnknownCheck(t *testing.T) {
	report := newValidator().ReportDataQuality([]entities.InteractionRule{validRule()}, nil)
	if report.RulesWithUnknownDrugs != 0 {
		t.Errorf("Expected no unknown drugs without a catalog, got %d", report.RulesWithUnknownDrugs)
	}
}

func TestValidateInput_Valid(t *testing.T) {
	v := newValidator()
	for _, input := range []string{
		"Morphine",
		"Morphine Sulfate",
		"Epinephrine (1:1,000)",
		"Dextrose 50%",
		"Sodium Bicarbonate 8.4%",
		"Ipratropium/Albuterol",
		"D5W",
		"Kétamine",
		"O'Neil's mix",
		"Vitamin B1+B6",
	} {
		if err := v.ValidateInput(input); err != nil {
			t.Errorf("Expected %q to be valid, got %v", input, err)
		}
	}
}

func TestValidateInput_Invalid(t *testing.T) {
	tests := []struct {
		input   string
		wantErr string
	}{
		{"", "cannot be empty"},
		{"   ", "cannot be empty"},
		{"a", "too short"},
		{strings.Repeat("ab", 51), "too long"},
		{"one two three four five six seven eight nine", "too complex"},
		{"<script>alert(1)</script>", "dangerous"},
		{"morphine' or 1=1", "dangerous"},
		{"union select * from users", "dangerous"},
		{"../../etc/passwd", "dangerous"},
		{"aspirin; rm", "dangerous"},
		{"aspirin--", "dangerous"},
		{"aspirin#1", "invalid characters"},
		{"aspirin<b>", "invalid characters"},
		{"aspirin 💊", "invalid characters"},
		{"aaaaaaaaaaaaaaa", "excessive character repetition"},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := v.ValidateInput(tt.input)
			if err == nil {
				t.Fatalf("Expected error for %q", tt.input)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSelection(t *testing.T) {
	v := newValidator()

	if err := v.ValidateSelection(nil); err != nil {
		t.Errorf("Empty selection should be valid, got %v", err)
	}
	if err := v.ValidateSelection([]string{"Aspirin"}); err != nil {
		t.Errorf("Single medication should be valid, got %v", err)
	}
	if err := v.ValidateSelection([]string{"Aspirin", "Warfarin", "Ketorolac"}); err != nil {
		t.Errorf("Expected valid selection, got %v", err)
	}

	err := v.ValidateSelection([]string{"Aspirin", "Warfarin", "Aspirin"})
	if err == nil || !strings.Contains(err.Error(), "selected twice") {
		t.Errorf("Expected duplicate error, got %v", err)
	}

	err = v.ValidateSelection([]string{"Aa", "Bb", "Cc", "Dd", "Ee", "Ff"})
	if err == nil || !strings.Contains(err.Error(), "maximum 5") {
		t.Errorf("Expected max selection error, got %v", err)
	}

	err = v.ValidateSelection([]string{"Aspirin", "<script>"})
	if err == nil || !strings.Contains(err.Error(), `"<script>"`) {
		t.Errorf("Expected error naming the bad medication, got %v", err)
	}
}

type checkRequest struct {
	Medications []string `validate:"required,min=1,max=5,dive,required"`
	Sort        string   `validate:"omitempty,oneof=pair severity"`
}

func TestValidateStruct(t *testing.T) {
	v := newValidator()

	if err := v.ValidateStruct(checkRequest{Medications: []string{"Aspirin"}, Sort: "severity"}); err != nil {
		t.Errorf("Expected valid struct, got %v", err)
	}

	err := v.ValidateStruct(checkRequest{})
	if err == nil || !strings.Contains(err.Error(), "medications is required") {
		t.Errorf("Expected required error, got %v", err)
	}

	err = v.ValidateStruct(checkRequest{Medications: []string{"Aspirin"}, Sort: "alpha"})
	if err == nil || !strings.Contains(err.Error(), "sort must be one of: pair severity") {
		t.Errorf("Expected oneof error, got %v", err)
	}
}

func TestHasExcessiveRepetition(t *testing.T) {
	if hasExcessiveRepetition("aaaaaaaaaa") {
		t.Error("Ten in a row should be allowed")
	}
	if !hasExcessiveRepetition("xaaaaaaaaaaax") {
		t.Error("Eleven in a row should be rejected")
	}
	if hasExcessiveRepetition("Hydromorphone") {
		t.Error("Normal names should pass")
	}
}

func BenchmarkValidateInput(b *testing.B) {
	v := newValidator()
	for i := 0; i < b.N; i++ {
		_ = v.ValidateInput("Epinephrine (1:1,000)")
	}
}
