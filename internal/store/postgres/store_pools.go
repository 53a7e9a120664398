package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func scanPool(row *sql.Row) (*domain.Pool, error) {
	p := &domain.Pool{}
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Default, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPool loads a pool by id.
func (s *Store) GetPool(ctx context.Context, id string) (*domain.Pool, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, project_id, name, is_default, created_at FROM pools WHERE id = $1`, id)
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("pool", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	return p, nil
}

// GetPoolByName loads a pool by its project-scoped unique name.
func (s *Store) GetPoolByName(ctx context.Context, projectID, name string) (*domain.Pool, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, project_id, name, is_default, created_at
		FROM pools WHERE project_id = $1 AND name = $2`, projectID, name)
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("pool", name)
	}
	if err != nil {
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	return p, nil
}

// GetDefaultPool loads the project's default pool.
func (s *Store) GetDefaultPool(ctx context.Context, projectID string) (*domain.Pool, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, project_id, name, is_default, created_at
		FROM pools WHERE project_id = $1 AND is_default = true`, projectID)
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("pool", "default")
	}
	if err != nil {
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	return p, nil
}

// CreatePool inserts a new pool row. A unique index on (project_id,
// name) rejects a second pool of the same name from concurrent
// get_or_create_pool_by_name callers (spec §4.2); this call surfaces
// that violation as a Conflict.
func (s *Store) CreatePool(ctx context.Context, pool *domain.Pool) error {
	_, err := s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO pools (id, project_id, name, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		pool.ID, pool.ProjectID, pool.Name, pool.Default, pool.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.Conflict(fmt.Sprintf("pool %q already exists", pool.Name))
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// ListPools returns every pool owned by a project.
func (s *Store) ListPools(ctx context.Context, projectID string) ([]*domain.Pool, error) {
	rows, err := s.Querier(ctx).QueryContext(ctx, `
		SELECT id, project_id, name, is_default, created_at
		FROM pools WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		p := &domain.Pool{}
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Default, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// DeletePool removes a pool row.
func (s *Store) DeletePool(ctx context.Context, id string) error {
	res, err := s.Querier(ctx).ExecContext(ctx, `DELETE FROM pools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("pool", id)
	}
	return nil
}

// SetDefaultPool clears the current default and marks poolID as
// default, maintaining the exactly-one-default-per-project invariant
// (spec §3).
func (s *Store) SetDefaultPool(ctx context.Context, projectID, poolID string) error {
	q := s.Querier(ctx)
	if _, err := q.ExecContext(ctx, `UPDATE pools SET is_default = false WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("clear default pool: %w", err)
	}
	res, err := q.ExecContext(ctx, `UPDATE pools SET is_default = true WHERE id = $1 AND project_id = $2`, poolID, projectID)
	if err != nil {
		return fmt.Errorf("set default pool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("pool", poolID)
	}
	return nil
}
