package handlers

import (
	"github.com/giygas/ems-interactions-api/interactions"
	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
)

// interactionView is one card of the check result, rule fields flattened
type interactionView struct {
	MedicationA     string             `json:"medication_a"`
	MedicationB     string             `json:"medication_b"`
	Severity        entities.Severity  `json:"severity"`
	Description     string             `json:"description"`
	ClinicalEffects string             `json:"clinical_effects"`
	Management      string             `json:"management"`
	MatchedBy       entities.MatchKind `json:"matched_by"`
}

type reportView struct {
	Medications  []string                  `json:"medications"`
	PairsChecked int                       `json:"pairs_checked"`
	Count        int                       `json:"count"`
	BySeverity   map[entities.Severity]int `json:"by_severity"`
	Interactions []interactionView         `json:"interactions"`
}

func newReportView(report interactions.Report) reportView {
	views := make([]interactionView, 0, len(report.Interactions))
	for _, r := range report.Interactions {
		views = append(views, interactionView{
			MedicationA:     r.MedicationA,
			MedicationB:     r.MedicationB,
			Severity:        r.Rule.Severity,
			Description:     r.Rule.Description,
			ClinicalEffects: r.Rule.ClinicalEffects,
			Management:      r.Rule.Management,
			MatchedBy:       r.MatchedBy,
		})
	}

	medications := report.Medications
	if medications == nil {
		medications = []string{}
	}

	return reportView{
		Medications:  medications,
		PairsChecked: report.PairsChecked,
		Count:        report.Count,
		BySeverity:   report.BySeverity,
		Interactions: views,
	}
}

type sessionView struct {
	*interfaces.Session
	Count int `json:"count"`
}

type addMedicationResponse struct {
	Session sessionView `json:"session"`
	Added   bool        `json:"added"`
}

func newSessionView(s *interfaces.Session) sessionView {
	return sessionView{Session: s, Count: s.Selection.Len()}
}
