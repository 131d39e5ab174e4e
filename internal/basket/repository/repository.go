package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements the basket repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new basket repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Upsert writes all values in a single transaction.
func (r *Repo) Upsert(ctx context.Context, values []Value) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO basket_values (month, total_basket, poverty_line, indigence_line, imported_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (month) DO UPDATE
		SET total_basket = EXCLUDED.total_basket,
			poverty_line = EXCLUDED.poverty_line,
			indigence_line = EXCLUDED.indigence_line,
			imported_at = now()`

	for _, v := range values {
		if _, err := tx.Exec(ctx, query, v.Month, v.TotalBasket, v.PovertyLine, v.IndigenceLine); err != nil {
			return 0, fmt.Errorf("upsert basket value %s: %w", v.Month.Format("2006-01"), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit basket values: %w", err)
	}
	return len(values), nil
}

// ListRange lists basket values between two months.
func (r *Repo) ListRange(ctx context.Context, from, to time.Time) ([]Value, error) {
	whereClauses := []string{"TRUE"}
	args := []interface{}{}
	if !from.IsZero() {
		args = append(args, from)
		whereClauses = append(whereClauses, fmt.Sprintf("month >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		whereClauses = append(whereClauses, fmt.Sprintf("month < $%d", len(args)))
	}

	query := `
		SELECT month, total_basket, poverty_line, indigence_line, imported_at
		FROM basket_values
		WHERE ` + strings.Join(whereClauses, " AND ") + `
		ORDER BY month ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list basket values: %w", err)
	}
	defer rows.Close()

	var values []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.Month, &v.TotalBasket, &v.PovertyLine, &v.IndigenceLine, &v.ImportedAt); err != nil {
			return nil, fmt.Errorf("scan basket value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate basket values: %w", err)
	}
	return values, nil
}
