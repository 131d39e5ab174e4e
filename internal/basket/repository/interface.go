package repository

import (
	"context"
	"time"
)

// Value is one monthly basket observation.
type Value struct {
	Month         time.Time `db:"month"`
	TotalBasket   float64   `db:"total_basket"`
	PovertyLine   float64   `db:"poverty_line"`
	IndigenceLine float64   `db:"indigence_line"`
	ImportedAt    time.Time `db:"imported_at"`
}

// Repository defines persistence for basket values.
type Repository interface {
	// Upsert stores values keyed by month, replacing existing months.
	Upsert(ctx context.Context, values []Value) (int, error)
	// ListRange returns months in [from, to), ordered by month. A zero bound is open.
	ListRange(ctx context.Context, from, to time.Time) ([]Value, error)
}
