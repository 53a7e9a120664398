package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func scanRun(scan func(dest ...any) error) (*domain.Run, error) {
	r := &domain.Run{}
	var runSpecJSON, serviceSpecJSON []byte
	var terminationReason, gatewayID sql.NullString
	err := scan(
		&r.ID, &r.ProjectID, &r.RepoID, &r.UserID, &r.RunName,
		&r.SubmittedAt, &r.LastProcessedAt, &r.Status, &terminationReason,
		&r.Deleted, &runSpecJSON, &gatewayID, &serviceSpecJSON,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(runSpecJSON, &r.RunSpec); err != nil {
		return nil, apperrors.Validation("run", r.ID, err)
	}
	if terminationReason.Valid {
		reason := domain.RunTerminationReason(terminationReason.String)
		r.TerminationReason = &reason
	}
	if gatewayID.Valid {
		r.GatewayID = &gatewayID.String
	}
	if len(serviceSpecJSON) > 0 {
		var spec domain.ServiceSpec
		if err := json.Unmarshal(serviceSpecJSON, &spec); err != nil {
			return nil, apperrors.Validation("run", r.ID, err)
		}
		r.ServiceSpec = &spec
	}
	return r, nil
}

const runColumns = `
	id, project_id, repo_id, user_id, run_name,
	submitted_at, last_processed_at, status, termination_reason,
	deleted, run_spec, gateway_id, service_spec`

// GetRun loads a run by id, including soft-deleted rows (callers that
// need only active runs should filter on Deleted themselves).
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	r, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// GetRunByName loads the non-deleted run with the given name in a
// project, the lookup submit_run uses to detect name collisions.
func (s *Store) GetRunByName(ctx context.Context, projectID, runName string) (*domain.Run, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE project_id = $1 AND run_name = $2 AND deleted = false`, projectID, runName)
	r, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("run", runName)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	runSpecJSON, err := json.Marshal(run.RunSpec)
	if err != nil {
		return fmt.Errorf("marshal run_spec: %w", err)
	}
	var serviceSpecJSON []byte
	if run.ServiceSpec != nil {
		serviceSpecJSON, err = json.Marshal(run.ServiceSpec)
		if err != nil {
			return fmt.Errorf("marshal service_spec: %w", err)
		}
	}
	var terminationReason *string
	if run.TerminationReason != nil {
		s := string(*run.TerminationReason)
		terminationReason = &s
	}
	_, err = s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		run.ID, run.ProjectID, run.RepoID, run.UserID, run.RunName,
		run.SubmittedAt, run.LastProcessedAt, run.Status, terminationReason,
		run.Deleted, runSpecJSON, run.GatewayID, serviceSpecJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun persists a run's mutable fields: status, termination
// reason, last_processed_at, and gateway binding.
func (s *Store) UpdateRun(ctx context.Context, run *domain.Run) error {
	var terminationReason *string
	if run.TerminationReason != nil {
		v := string(*run.TerminationReason)
		terminationReason = &v
	}
	res, err := s.Querier(ctx).ExecContext(ctx, `
		UPDATE runs SET
			status = $2, termination_reason = $3, last_processed_at = $4,
			deleted = $5, gateway_id = $6
		WHERE id = $1`,
		run.ID, run.Status, terminationReason, run.LastProcessedAt, run.Deleted, run.GatewayID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("run", run.ID)
	}
	return nil
}

// ListActiveRunNames returns the set of run_name values currently in
// use (non-deleted) within a project, for name-generator uniqueness
// checks.
func (s *Store) ListActiveRunNames(ctx context.Context, projectID string) (map[string]bool, error) {
	rows, err := s.Querier(ctx).QueryContext(ctx, `
		SELECT run_name FROM runs WHERE project_id = $1 AND deleted = false`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list active run names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan run name: %w", err)
		}
		names[name] = true
	}
	return names, rows.Err()
}

// ListRunsByStatus returns non-deleted runs in any of statuses, the
// query the reconciler driver uses to find candidate runs (spec §4.8).
func (s *Store) ListRunsByStatus(ctx context.Context, statuses []domain.RunStatus, limit int) ([]*domain.Run, error) {
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, st)
	}
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE deleted = false AND status IN (%s) ORDER BY last_processed_at ASC`,
		runColumns, strings.Join(placeholders, ", "))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SoftDeleteRun flips the deleted flag; rows are never physically
// removed (spec §3 "Lifecycle").
func (s *Store) SoftDeleteRun(ctx context.Context, id string) error {
	res, err := s.Querier(ctx).ExecContext(ctx, `UPDATE runs SET deleted = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("run", id)
	}
	return nil
}
