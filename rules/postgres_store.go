package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresWorkflowStore implements WorkflowStore backed by PostgreSQL.
// Rule objects are kept in a JSONB column.
type PostgresWorkflowStore struct {
	db *sql.DB
}

// NewPostgresWorkflowStore creates a store over an open database handle
func NewPostgresWorkflowStore(db *sql.DB) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// Put upserts a definition, keeping the original created_at
func (s *PostgresWorkflowStore) Put(ctx context.Context, def *WorkflowDefinition) error {
	now := time.Now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO workflows (name, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE
		SET rules = EXCLUDED.rules, updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, def.Name, []byte(def.Rules), now).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// Get retrieves a definition by name
func (s *PostgresWorkflowStore) Get(ctx context.Context, name string) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT name, rules, created_at, updated_at
		FROM workflows
		WHERE name = $1
	`, name).Scan(&def.Name, &raw, &def.CreatedAt, &def.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	def.Rules = raw
	return &def, nil
}

// List returns every stored definition ordered by name
func (s *PostgresWorkflowStore) List(ctx context.Context) ([]*WorkflowDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, rules, created_at, updated_at
		FROM workflows
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var defs []*WorkflowDefinition
	for rows.Next() {
		var def WorkflowDefinition
		var raw []byte
		if err := rows.Scan(&def.Name, &raw, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		def.Rules = raw
		defs = append(defs, &def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return defs, nil
}

// Delete removes a definition
func (s *PostgresWorkflowStore) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workflows
		WHERE name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}

	return nil
}
