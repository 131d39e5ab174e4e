package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

const runNotFoundMessage = "ingestion run not found"

const runColumns = `id, trigger, status, fingerprint, individuals, households, periods, exclusions, error, started_at, finished_at`

// Repo implements the ingestion run repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new ingestion run repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a run.
func (r *Repo) Create(ctx context.Context, id uuid.UUID, trigger, status string) (Run, error) {
	query := `
		INSERT INTO ingestion_runs (id, trigger, status)
		VALUES ($1, $2, $3)
		RETURNING ` + runColumns

	run, err := scanRun(r.pool.QueryRow(ctx, query, id, trigger, status))
	if err != nil {
		return Run{}, fmt.Errorf("create ingestion run: %w", err)
	}
	return run, nil
}

// MarkRunning moves a queued run to running.
func (r *Repo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE ingestion_runs SET status = $2, started_at = now() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, StatusRunning)
	if err != nil {
		return fmt.Errorf("mark ingestion run running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(runNotFoundMessage)
	}
	return nil
}

// Finish stores the outcome of a run.
func (r *Repo) Finish(ctx context.Context, params FinishParams) error {
	exclusions := params.Exclusions
	if exclusions == nil {
		exclusions = map[string]int{}
	}
	periods := params.Periods
	if periods == nil {
		periods = []string{}
	}

	query := `
		UPDATE ingestion_runs
		SET status = $2,
			fingerprint = NULLIF($3, ''),
			individuals = $4,
			households = $5,
			periods = $6,
			exclusions = $7,
			error = NULLIF($8, ''),
			finished_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		params.ID, params.Status, params.Fingerprint, params.Individuals, params.Households,
		periods, exclusions, params.Error,
	)
	if err != nil {
		return fmt.Errorf("finish ingestion run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(runNotFoundMessage)
	}
	return nil
}

// GetByID retrieves a run.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Run, error) {
	query := `SELECT ` + runColumns + ` FROM ingestion_runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, apperr.NotFound(runNotFoundMessage)
		}
		return Run{}, fmt.Errorf("get ingestion run: %w", err)
	}
	return run, nil
}

// List returns runs, newest first, and the total count.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]Run, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ingestion_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ingestion runs: %w", err)
	}

	query := `SELECT ` + runColumns + `
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ingestion runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ingestion run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ingestion runs: %w", err)
	}
	return runs, total, nil
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.Trigger, &run.Status, &run.Fingerprint, &run.Individuals, &run.Households,
		&run.Periods, &run.Exclusions, &run.Error, &run.StartedAt, &run.FinishedAt,
	)
	return run, err
}
