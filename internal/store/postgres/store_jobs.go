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

const jobColumns = `
	id, run_id, project_id, replica_num, job_num, submission_num, job_name,
	submitted_at, last_processed_at, status, termination_reason, job_spec,
	instance_id, provisioning_data`

func scanJob(scan func(dest ...any) error) (*domain.Job, error) {
	j := &domain.Job{}
	var jobSpecJSON, provisioningJSON []byte
	var terminationReason, instanceID sql.NullString
	err := scan(
		&j.ID, &j.RunID, &j.ProjectID, &j.ReplicaNum, &j.JobNum, &j.SubmissionNum, &j.JobName,
		&j.SubmittedAt, &j.LastProcessedAt, &j.Status, &terminationReason, &jobSpecJSON,
		&instanceID, &provisioningJSON,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jobSpecJSON, &j.JobSpec); err != nil {
		return nil, apperrors.Validation("job", j.ID, err)
	}
	if terminationReason.Valid {
		reason := domain.JobTerminationReason(terminationReason.String)
		j.TerminationReason = &reason
	}
	if instanceID.Valid {
		j.InstanceID = &instanceID.String
	}
	if len(provisioningJSON) > 0 {
		var pd domain.ProvisioningData
		if err := json.Unmarshal(provisioningJSON, &pd); err != nil {
			return nil, apperrors.Validation("job", j.ID, err)
		}
		j.ProvisioningData = &pd
	}
	return j, nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("job", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return j, nil
}

// ListJobsByRun returns every submission row belonging to a run,
// ordered so that a given (replica_num, job_num) group's submissions
// are contiguous and ascending by submission_num.
func (s *Store) ListJobsByRun(ctx context.Context, runID string) ([]*domain.Job, error) {
	rows, err := s.Querier(ctx).QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE run_id = $1
		ORDER BY replica_num ASC, job_num ASC, submission_num ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by run: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// LatestSubmissions returns, for every (replica_num, job_num) group in
// runID, only the row with the highest submission_num — the
// JobSubmission projection's source rows.
func (s *Store) LatestSubmissions(ctx context.Context, runID string) ([]*domain.Job, error) {
	rows, err := s.Querier(ctx).QueryContext(ctx, `
		SELECT `+prefixColumns("j", jobColumns)+` FROM jobs j
		INNER JOIN (
			SELECT replica_num, job_num, MAX(submission_num) AS max_submission
			FROM jobs WHERE run_id = $1
			GROUP BY replica_num, job_num
		) latest
		ON j.replica_num = latest.replica_num
		AND j.job_num = latest.job_num
		AND j.submission_num = latest.max_submission
		WHERE j.run_id = $1
		ORDER BY j.replica_num ASC, j.job_num ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list latest submissions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// CreateJob inserts a new job row (a fresh submission attempt).
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	jobSpecJSON, err := json.Marshal(job.JobSpec)
	if err != nil {
		return fmt.Errorf("marshal job_spec: %w", err)
	}
	var provisioningJSON []byte
	if job.ProvisioningData != nil {
		provisioningJSON, err = json.Marshal(job.ProvisioningData)
		if err != nil {
			return fmt.Errorf("marshal provisioning_data: %w", err)
		}
	}
	var terminationReason *string
	if job.TerminationReason != nil {
		v := string(*job.TerminationReason)
		terminationReason = &v
	}
	_, err = s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		job.ID, job.RunID, job.ProjectID, job.ReplicaNum, job.JobNum, job.SubmissionNum, job.JobName,
		job.SubmittedAt, job.LastProcessedAt, job.Status, terminationReason, jobSpecJSON,
		job.InstanceID, provisioningJSON,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob persists a job's mutable fields: status, termination
// reason, instance binding, provisioning data, last_processed_at.
func (s *Store) UpdateJob(ctx context.Context, job *domain.Job) error {
	var provisioningJSON []byte
	var err error
	if job.ProvisioningData != nil {
		provisioningJSON, err = json.Marshal(job.ProvisioningData)
		if err != nil {
			return fmt.Errorf("marshal provisioning_data: %w", err)
		}
	}
	var terminationReason *string
	if job.TerminationReason != nil {
		v := string(*job.TerminationReason)
		terminationReason = &v
	}
	res, err := s.Querier(ctx).ExecContext(ctx, `
		UPDATE jobs SET
			status = $2, termination_reason = $3, last_processed_at = $4,
			instance_id = $5, provisioning_data = $6
		WHERE id = $1`,
		job.ID, job.Status, terminationReason, job.LastProcessedAt, job.InstanceID, provisioningJSON,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("job", job.ID)
	}
	return nil
}

// ListJobsByStatus returns jobs in any of statuses, the query the
// reconciler driver uses per job-processing phase (spec §4.8).
func (s *Store) ListJobsByStatus(ctx context.Context, statuses []domain.JobStatus, limit int) ([]*domain.Job, error) {
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, st)
	}
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE status IN (%s) ORDER BY last_processed_at ASC`,
		jobColumns, strings.Join(placeholders, ", "))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
