// Package interactionsparser loads the interaction reference table and the
// medication catalog from embedded defaults, local files, URLs or Postgres.
package interactionsparser

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
)

// Compile-time check to ensure InteractionsParser implements Parser interface
var _ interfaces.Parser = (*InteractionsParser)(nil)

const (
	sourceEmbedded = "embedded"
	sourcePostgres = "postgres"
)

//go:embed defaults/interactions.yaml
var defaultRules []byte

//go:embed defaults/catalog.yaml
var defaultCatalog []byte

// InteractionsParser implements the Parser interface
type InteractionsParser struct {
	rulesSource   string
	catalogSource string
	store         interfaces.RuleStore
	client        *http.Client
}

// NewInteractionsParser creates a parser for the given sources.
// store is only consulted when rulesSource is "postgres" and may be nil otherwise.
func NewInteractionsParser(rulesSource, catalogSource string, store interfaces.RuleStore) *InteractionsParser {
	return &InteractionsParser{
		rulesSource:   rulesSource,
		catalogSource: catalogSource,
		store:         store,
		client:        &http.Client{Timeout: 2 * time.Minute},
	}
}

// ParseRules loads the reference table from the configured source
func (p *InteractionsParser) ParseRules(ctx context.Context) ([]entities.InteractionRule, error) {
	src := p.rulesSource
	switch {
	case src == "" || src == sourceEmbedded:
		return decodeRulesYAML(bytes.NewReader(defaultRules), sourceEmbedded)

	case src == sourcePostgres:
		if p.store == nil {
			return nil, fmt.Errorf("rules source is postgres but no rule store is configured")
		}
		rules, err := p.store.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rules from postgres: %w", err)
		}
		for i := range rules {
			rules[i].Source = sourcePostgres
		}
		return rules, nil

	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		body, err := download(ctx, p.client, src)
		if err != nil {
			return nil, err
		}
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("invalid rules url %s: %w", src, err)
		}
		return decodeRulesByExtension(body, path.Ext(u.Path), src)

	default:
		body, err := os.ReadFile(filepath.Clean(src))
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file %s: %w", src, err)
		}
		if body, err = toUTF8(body, src); err != nil {
			return nil, err
		}
		return decodeRulesByExtension(body, filepath.Ext(src), src)
	}
}

// ParseCatalog loads the selectable medication list
func (p *InteractionsParser) ParseCatalog(ctx context.Context) ([]entities.Medication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.catalogSource == "" || p.catalogSource == sourceEmbedded {
		return decodeCatalogYAML(bytes.NewReader(defaultCatalog))
	}

	f, err := os.Open(filepath.Clean(p.catalogSource))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", p.catalogSource, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close catalog file", "error", err)
		}
	}()

	return decodeCatalogYAML(f)
}

func decodeRulesByExtension(body []byte, ext, source string) ([]entities.InteractionRule, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return decodeRulesYAML(bytes.NewReader(body), source)
	case ".tsv", ".txt":
		rules, stats, err := parseRulesTSV(bytes.NewReader(body), source)
		if err != nil {
			return nil, err
		}
		stats.log(source)
		return rules, nil
	}
	return nil, fmt.Errorf("unsupported rules format %q for %s", ext, source)
}
