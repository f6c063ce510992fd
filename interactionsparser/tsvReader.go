package interactionsparser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/logging"
)

// tsvStats counts what parseRulesTSV skipped
type tsvStats struct {
	lines          int
	parsed         int
	emptyLines     int
	missingColumns int
	badSeverity    int
	headerSkipped  bool
}

func (s tsvStats) log(source string) {
	skipped := s.emptyLines + s.missingColumns + s.badSeverity
	if skipped == 0 {
		logging.Debug("Rules TSV parsed", "source", source, "rules", s.parsed)
		return
	}
	logging.Warn("Rules TSV parsed with skipped lines",
		"source", source,
		"rules", s.parsed,
		"lines", s.lines,
		"empty_lines", s.emptyLines,
		"missing_columns", s.missingColumns,
		"bad_severity", s.badSeverity,
	)
}

// parseRulesTSV reads drugA, drugB, severity, description, clinicalEffects,
// management separated by tabs. The last two columns are optional. A first
// line starting with "drug" is treated as a header.
func parseRulesTSV(r io.Reader, source string) ([]entities.InteractionRule, tsvStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	rules := []entities.InteractionRule{}
	var stats tsvStats

	for scanner.Scan() {
		stats.lines++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			stats.emptyLines++
			continue
		}

		fields := strings.Split(line, "\t")

		if stats.lines == 1 && strings.HasPrefix(strings.ToLower(strings.TrimSpace(fields[0])), "drug") {
			stats.headerSkipped = true
			continue
		}

		if len(fields) < 4 {
			stats.missingColumns++
			continue
		}

		sev, err := entities.ParseSeverity(fields[2])
		if err != nil {
			stats.badSeverity++
			continue
		}

		rule := entities.InteractionRule{
			DrugA:       strings.TrimSpace(fields[0]),
			DrugB:       strings.TrimSpace(fields[1]),
			Severity:    sev,
			Description: strings.TrimSpace(fields[3]),
			Source:      source,
		}
		if len(fields) > 4 {
			rule.ClinicalEffects = strings.TrimSpace(fields[4])
		}
		if len(fields) > 5 {
			rule.Management = strings.TrimSpace(fields[5])
		}

		rules = append(rules, rule)
		stats.parsed++
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scanner error in %s: %w", source, err)
	}

	return rules, stats, nil
}
