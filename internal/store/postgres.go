package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rulesets (
	key         text        NOT NULL,
	env         text        NOT NULL,
	description text        NOT NULL DEFAULT '',
	enabled     boolean     NOT NULL DEFAULT false,
	sample      integer     NOT NULL DEFAULT 100,
	rule        jsonb,
	updated_at  timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (key, env)
)`

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Rule trees are stored as jsonb; (key, env) is the primary key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store on an existing pool.
// Call EnsureSchema before first use to create the rulesets table.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying connection pool so components like the
// audit sink can share it instead of opening a second one.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

// EnsureSchema creates the rulesets table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ListRuleSets retrieves all rule sets for the given environment from the database.
func (p *PostgresStore) ListRuleSets(ctx context.Context, env string) ([]RuleSet, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key, env, description, enabled, sample, rule, updated_at
		FROM rulesets
		WHERE env = $1
		ORDER BY key`, env)
	if err != nil {
		return nil, fmt.Errorf("list rulesets: %w", err)
	}
	defer rows.Close()

	result := make([]RuleSet, 0)
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rulesets: %w", err)
	}
	return result, nil
}

// GetRuleSet retrieves a single rule set by key and environment from the database.
func (p *PostgresStore) GetRuleSet(ctx context.Context, key, env string) (*RuleSet, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT key, env, description, enabled, sample, rule, updated_at
		FROM rulesets
		WHERE key = $1 AND env = $2`, key, env)

	rs, err := scanRuleSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rs, nil
}

// UpsertRuleSet creates or updates a rule set in the database.
func (p *PostgresStore) UpsertRuleSet(ctx context.Context, params UpsertParams) error {
	var rule []byte
	if params.Rule != nil {
		rule = []byte(params.Rule)
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO rulesets (key, env, description, enabled, sample, rule, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (key, env) DO UPDATE SET
			description = EXCLUDED.description,
			enabled     = EXCLUDED.enabled,
			sample      = EXCLUDED.sample,
			rule        = EXCLUDED.rule,
			updated_at  = now()`,
		params.Key, params.Env, params.Description, params.Enabled, params.Sample, rule)
	if err != nil {
		return fmt.Errorf("upsert ruleset %q: %w", params.Key, err)
	}
	return nil
}

// DeleteRuleSet removes a rule set from the database.
func (p *PostgresStore) DeleteRuleSet(ctx context.Context, key, env string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rulesets WHERE key = $1 AND env = $2`, key, env)
	if err != nil {
		return fmt.Errorf("delete ruleset %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck pings the database.
func (p *PostgresStore) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// scanRuleSet reads one rulesets row. A NULL rule column scans to a nil
// slice, which round-trips as an absent rule.
func scanRuleSet(row pgx.Row) (RuleSet, error) {
	var rs RuleSet
	var rule []byte
	if err := row.Scan(&rs.Key, &rs.Env, &rs.Description, &rs.Enabled, &rs.Sample, &rule, &rs.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RuleSet{}, err
		}
		return RuleSet{}, fmt.Errorf("scan ruleset: %w", err)
	}
	if rule != nil {
		rs.Rule = rule
	}
	return rs, nil
}
