package interactionsparser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/rulestore"
)

// SeedStore copies the embedded reference table into an empty rule store and
// returns how many rules it wrote. A store that already holds rules is left alone.
func SeedStore(ctx context.Context, store interfaces.RuleStore) (int, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count stored rules: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	rules, err := decodeRulesYAML(bytes.NewReader(defaultRules), sourceEmbedded)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for i := range rules {
		err := store.Create(ctx, &rules[i])
		if errors.Is(err, rulestore.ErrDuplicatePair) {
			logging.Warn("Skipping duplicate pair while seeding", "pair", rules[i].PairKey())
			continue
		}
		if err != nil {
			return seeded, fmt.Errorf("failed to seed rule %s: %w", rules[i].PairKey(), err)
		}
		seeded++
	}

	logging.Info("Seeded rule store from embedded table", "rules", seeded)
	return seeded, nil
}
