// Package storage persists expense records. The SQLite repository lives
// here; the memory and PostgreSQL variants are in subpackages.
package storage

import (
	"context"
	"errors"

	"condivise/internal/core"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("expense not found")

// Repository is the record store port used by the service layer.
type Repository interface {
	// Create assigns an id and returns the stored record.
	Create(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error)
	// Update replaces every field of the record with rec.ID.
	Update(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (core.ExpenseRecord, error)
	// List returns every record ordered by date, then id.
	List(ctx context.Context) ([]core.ExpenseRecord, error)
	Ping(ctx context.Context) error
	Close() error
}
