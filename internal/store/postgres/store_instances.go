package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func scanInstance(scan func(dest ...any) error) (*domain.Instance, error) {
	i := &domain.Instance{}
	var offerJSON []byte
	var startedAt, terminatedAt sql.NullTime
	var currentJobID sql.NullString
	err := scan(
		&i.ID, &i.Name, &i.PoolID, &i.BackendType, &i.Region, &offerJSON,
		&i.Hostname, &i.SSHPort, &i.Username, &i.Dockerized, &i.BackendData, &i.Price,
		&i.Status, &i.CreatedAt, &startedAt, &terminatedAt,
		&i.TerminationPolicy, &i.TerminationIdleTime, &currentJobID,
	)
	if err != nil {
		return nil, err
	}
	if len(offerJSON) > 0 {
		if err := json.Unmarshal(offerJSON, &i.OfferSnapshot); err != nil {
			return nil, apperrors.Validation("instance", i.ID, err)
		}
	}
	if startedAt.Valid {
		i.StartedAt = &startedAt.Time
	}
	if terminatedAt.Valid {
		i.TerminatedAt = &terminatedAt.Time
	}
	if currentJobID.Valid {
		i.CurrentJobID = &currentJobID.String
	}
	return i, nil
}

// GetInstance loads an instance by id.
func (s *Store) GetInstance(ctx context.Context, id string) (*domain.Instance, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, name, pool_id, backend_type, region, offer_snapshot,
		       hostname, ssh_port, username, dockerized, backend_data, price,
		       status, created_at, started_at, terminated_at,
		       termination_policy, termination_idle_time, current_job_id
		FROM instances WHERE id = $1`, id)
	inst, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("instance", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan instance: %w", err)
	}
	return inst, nil
}

// ListPoolInstances returns every instance belonging to a pool.
func (s *Store) ListPoolInstances(ctx context.Context, poolID string) ([]*domain.Instance, error) {
	rows, err := s.Querier(ctx).QueryContext(ctx, `
		SELECT id, name, pool_id, backend_type, region, offer_snapshot,
		       hostname, ssh_port, username, dockerized, backend_data, price,
		       status, created_at, started_at, terminated_at,
		       termination_policy, termination_idle_time, current_job_id
		FROM instances WHERE pool_id = $1 ORDER BY created_at ASC`, poolID)
	if err != nil {
		return nil, fmt.Errorf("list pool instances: %w", err)
	}
	defer rows.Close()

	var out []*domain.Instance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan instance row: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// CreateInstance inserts a new instance row. Spec §4.6 step 6 requires
// this to only ever be called inside the same transaction as the
// create_instance operation that produced the offer.
func (s *Store) CreateInstance(ctx context.Context, instance *domain.Instance) error {
	offerJSON, err := json.Marshal(instance.OfferSnapshot)
	if err != nil {
		return fmt.Errorf("marshal offer snapshot: %w", err)
	}
	_, err = s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO instances (
			id, name, pool_id, backend_type, region, offer_snapshot,
			hostname, ssh_port, username, dockerized, backend_data, price,
			status, created_at, started_at, terminated_at,
			termination_policy, termination_idle_time, current_job_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		instance.ID, instance.Name, instance.PoolID, instance.BackendType, instance.Region, offerJSON,
		instance.Hostname, instance.SSHPort, instance.Username, instance.Dockerized, instance.BackendData, instance.Price,
		instance.Status, instance.CreatedAt, instance.StartedAt, instance.TerminatedAt,
		instance.TerminationPolicy, instance.TerminationIdleTime, instance.CurrentJobID,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// UpdateInstance persists a status/binding change. Callers are
// responsible for only ever moving Status monotonically toward
// TERMINATED (spec §3 invariant); this layer does not enforce it.
func (s *Store) UpdateInstance(ctx context.Context, instance *domain.Instance) error {
	res, err := s.Querier(ctx).ExecContext(ctx, `
		UPDATE instances SET
			status = $2, started_at = $3, terminated_at = $4, current_job_id = $5
		WHERE id = $1`,
		instance.ID, instance.Status, instance.StartedAt, instance.TerminatedAt, instance.CurrentJobID,
	)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("instance", instance.ID)
	}
	return nil
}
