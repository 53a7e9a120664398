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

func (s *Store) scanProject(row *sql.Row) (*domain.Project, error) {
	p := &domain.Project{}
	var backends pq.StringArray
	var defaultPoolID sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.SSHPublicKey, &p.SSHPrivateKey, &backends, &defaultPoolID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.ConfiguredBackends = []string(backends)
	if defaultPoolID.Valid {
		p.DefaultPoolID = defaultPoolID.String
	}
	return p, nil
}

// GetProject loads a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, name, ssh_public_key, ssh_private_key, configured_backends, default_pool_id, created_at
		FROM projects WHERE id = $1`, id)
	p, err := s.scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("project", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProjectByName loads a project by its unique name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*domain.Project, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, name, ssh_public_key, ssh_private_key, configured_backends, default_pool_id, created_at
		FROM projects WHERE name = $1`, name)
	p, err := s.scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("project", name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
