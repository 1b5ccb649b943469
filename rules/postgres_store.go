package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL. Each rule is
// one JSONB document in the rule_definitions table (see migrations/).
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a new PostgreSQL-backed RuleStore
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

// GetByName retrieves a rule by name
func (s *PostgresRuleStore) GetByName(ctx context.Context, name string) (*RuleDefinition, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document
		FROM rule_definitions
		WHERE name = $1
	`, name).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	var rule RuleDefinition
	if err := json.Unmarshal(doc, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule %s: %w", name, err)
	}
	return &rule, nil
}

// PutByName inserts the rule or replaces the stored document
func (s *PostgresRuleStore) PutByName(ctx context.Context, name string, rule *RuleDefinition) error {
	doc, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule %s: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_definitions (name, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET status = EXCLUDED.status, document = EXCLUDED.document, updated_at = NOW()
	`, name, string(rule.Meta.Status), doc)

	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}

	return nil
}

// ListNames returns all stored rule names
func (s *PostgresRuleStore) ListNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name
		FROM rule_definitions
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan rule name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return names, nil
}

// Ping checks database connectivity
func (s *PostgresRuleStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
