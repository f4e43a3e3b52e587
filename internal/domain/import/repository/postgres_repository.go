package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/pkg/db"
)

const (
	createParseJobQuery = `
		INSERT INTO parse_jobs (id, user_id, source, file_name, format, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	finishParseJobQuery = `
		UPDATE parse_jobs SET
			status = $2, format = $3, items_found = $4, lines_skipped = $5,
			error_message = $6, finished_at = NOW()
		WHERE id = $1
	`
	getParseJobQuery = `
		SELECT id, user_id, source, file_name, format, status, items_found, lines_skipped,
		       error_message, created_at, finished_at
		FROM parse_jobs WHERE id = $1
	`
	listParseJobsQuery = `
		SELECT id, user_id, source, file_name, format, status, items_found, lines_skipped,
		       error_message, created_at, finished_at
		FROM parse_jobs WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
)

const defaultListLimit = 50

// PostgresParseJobRepository implements ParseJobRepository using PostgreSQL
type PostgresParseJobRepository struct {
	pool db.PgxPool
}

// NewPostgresParseJobRepository creates a new PostgreSQL parse job repository
func NewPostgresParseJobRepository(pool db.PgxPool) *PostgresParseJobRepository {
	return &PostgresParseJobRepository{pool: pool}
}

// CreateParseJob inserts a running job
func (r *PostgresParseJobRepository) CreateParseJob(ctx context.Context, job *common.ParseJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = common.ParseJobStatusRunning
	}

	err := r.pool.QueryRow(ctx, createParseJobQuery,
		job.ID, job.UserID, job.Source, job.FileName, job.Format, job.Status,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create parse job: %w", err)
	}

	return nil
}

// FinishParseJob records the outcome of a job
func (r *PostgresParseJobRepository) FinishParseJob(ctx context.Context, id uuid.UUID, stats JobStats) error {
	tag, err := r.pool.Exec(ctx, finishParseJobQuery,
		id, stats.Status, stats.Format, stats.ItemsFound, stats.LinesSkipped, stats.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to finish parse job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetParseJob retrieves a job by ID. A missing job returns nil, nil.
func (r *PostgresParseJobRepository) GetParseJob(ctx context.Context, id uuid.UUID) (*common.ParseJob, error) {
	job, err := scanParseJob(r.pool.QueryRow(ctx, getParseJobQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parse job: %w", err)
	}
	return job, nil
}

// ListParseJobs returns the newest jobs of a user first
func (r *PostgresParseJobRepository) ListParseJobs(ctx context.Context, userID string, limit int) ([]*common.ParseJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.pool.Query(ctx, listParseJobsQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list parse jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*common.ParseJob
	for rows.Next() {
		job, err := scanParseJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parse job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parse jobs: %w", err)
	}

	return jobs, nil
}

func scanParseJob(row pgx.Row) (*common.ParseJob, error) {
	var job common.ParseJob
	err := row.Scan(
		&job.ID, &job.UserID, &job.Source, &job.FileName, &job.Format, &job.Status,
		&job.ItemsFound, &job.LinesSkipped, &job.ErrorMessage, &job.CreatedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
