// Package backend assembles the ledger service from configuration: the
// record store, the optional change-event publisher and the read cache.
package backend

import (
	"context"

	"condivise/internal/services"
)

// BackendType names a record store implementation.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (b BackendType) IsValid() bool {
	switch b {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	}
	return false
}

// CleanupFunc releases the resources behind a backend.
type CleanupFunc func() error

type BackendResult struct {
	Service *services.ExpenseService
	// Cache is nil when caching is disabled.
	Cache   CacheCleaner
	Cleanup CleanupFunc
}

// CacheCleaner is the sweep hook of the ledger cache.
type CacheCleaner interface {
	CleanExpired() int
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
