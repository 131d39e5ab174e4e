package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one attempt to load the survey extracts.
type Run struct {
	ID          uuid.UUID      `db:"id"`
	Trigger     string         `db:"trigger"`
	Status      string         `db:"status"`
	Fingerprint *string        `db:"fingerprint"`
	Individuals int            `db:"individuals"`
	Households  int            `db:"households"`
	Periods     []string       `db:"periods"`
	Exclusions  map[string]int `db:"exclusions"`
	Error       *string        `db:"error"`
	StartedAt   time.Time      `db:"started_at"`
	FinishedAt  *time.Time     `db:"finished_at"`
}

// FinishParams records the outcome of a run.
type FinishParams struct {
	ID          uuid.UUID
	Status      string
	Fingerprint string
	Individuals int
	Households  int
	Periods     []string
	Exclusions  map[string]int
	Error       string
}

// Repository defines persistence for ingestion runs.
type Repository interface {
	Create(ctx context.Context, id uuid.UUID, trigger, status string) (Run, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Finish(ctx context.Context, params FinishParams) error
	GetByID(ctx context.Context, id uuid.UUID) (Run, error)
	List(ctx context.Context, limit, offset int) ([]Run, int, error)
}
