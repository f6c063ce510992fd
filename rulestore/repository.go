package rulestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
)

// Compile-time check to ensure Repository implements RuleStore
var _ interfaces.RuleStore = (*Repository)(nil)

var (
	// ErrRuleNotFound is returned when no active rule has the given ID
	ErrRuleNotFound = errors.New("interaction rule not found")
	// ErrDuplicatePair is returned when an active rule already covers the pair
	ErrDuplicatePair = errors.New("an active rule already exists for this pair")
)

const uniqueViolation = "23505"

// Repository stores interaction rules in the drug_interaction table
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository on an open pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns active rules, oldest first, so the table order is stable across reloads
func (r *Repository) ListActive(ctx context.Context) ([]entities.InteractionRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, medication_a_name, medication_b_name, severity, description,
		       clinical_effect, management
		FROM drug_interaction
		WHERE active
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []entities.InteractionRule{}
	for rows.Next() {
		var (
			rule     entities.InteractionRule
			id       uuid.UUID
			severity string
		)
		if err := rows.Scan(&id, &rule.DrugA, &rule.DrugB, &severity, &rule.Description,
			&rule.ClinicalEffects, &rule.Management); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.ID = id.String()
		rule.Severity = entities.Severity(severity)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return rules, nil
}

// Create inserts rule and sets its ID
func (r *Repository) Create(ctx context.Context, rule *entities.InteractionRule) error {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO drug_interaction
			(id, medication_a_name, medication_b_name, severity, description,
			 clinical_effect, management, source, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)`,
		id, strings.TrimSpace(rule.DrugA), strings.TrimSpace(rule.DrugB), string(rule.Severity),
		rule.Description, rule.ClinicalEffects, rule.Management, rule.Source, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePair
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	rule.ID = id.String()
	return nil
}

// Delete deactivates a rule; rows are kept for audit
func (r *Repository) Delete(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrRuleNotFound
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE drug_interaction SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND active`, parsed)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Count returns the number of active rules
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM drug_interaction WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
