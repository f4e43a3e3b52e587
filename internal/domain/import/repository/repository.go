// Package repository provides data access for parse jobs.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/FACorreiaa/billing-intake/internal/domain/common"
)

// JobStats is what a finished parse job records.
type JobStats struct {
	Status       common.ParseJobStatus
	Format       string
	ItemsFound   int
	LinesSkipped int
	ErrorMessage *string
}

// ParseJobRepository defines data access operations for parse jobs
type ParseJobRepository interface {
	CreateParseJob(ctx context.Context, job *common.ParseJob) error
	FinishParseJob(ctx context.Context, id uuid.UUID, stats JobStats) error
	GetParseJob(ctx context.Context, id uuid.UUID) (*common.ParseJob, error)
	ListParseJobs(ctx context.Context, userID string, limit int) ([]*common.ParseJob, error)
}
