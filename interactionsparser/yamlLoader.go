package interactionsparser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
)

type rulesDocument struct {
	Interactions []entities.InteractionRule `yaml:"interactions"`
}

type catalogDocument struct {
	Medications []entities.Medication `yaml:"medications"`
}

// decodeRulesYAML reads an `interactions:` document. Severity casing is
// normalised; unknown severities are kept so validation can report them.
func decodeRulesYAML(r io.Reader, source string) ([]entities.InteractionRule, error) {
	var doc rulesDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []entities.InteractionRule{}, nil
		}
		return nil, fmt.Errorf("failed to decode rules yaml from %s: %w", source, err)
	}

	rules := doc.Interactions
	if rules == nil {
		rules = []entities.InteractionRule{}
	}
	for i := range rules {
		rules[i].DrugA = strings.TrimSpace(rules[i].DrugA)
		rules[i].DrugB = strings.TrimSpace(rules[i].DrugB)
		if sev, err := entities.ParseSeverity(string(rules[i].Severity)); err == nil {
			rules[i].Severity = sev
		}
		rules[i].Source = source
	}
	return rules, nil
}

func decodeCatalogYAML(r io.Reader) ([]entities.Medication, error) {
	var doc catalogDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []entities.Medication{}, nil
		}
		return nil, fmt.Errorf("failed to decode catalog yaml: %w", err)
	}

	if doc.Medications == nil {
		return []entities.Medication{}, nil
	}
	for i := range doc.Medications {
		doc.Medications[i].Name = strings.TrimSpace(doc.Medications[i].Name)
	}
	return doc.Medications, nil
}
