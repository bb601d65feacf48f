package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"condivise/internal/core"
	"condivise/internal/storage"
)

// Store keeps records in process memory. Data is lost on restart.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.ExpenseRecord
}

var _ storage.Repository = (*Store)(nil)

func New(seed ...core.ExpenseRecord) *Store {
	s := &Store{items: make(map[int64]core.ExpenseRecord)}
	for _, rec := range seed {
		s.nextID++
		rec.ID = s.nextID
		s.items[rec.ID] = rec
	}
	return s
}

func (s *Store) Create(_ context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.items[rec.ID] = rec
	return rec, nil
}

func (s *Store) Update(_ context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rec.ID]; !ok {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", rec.ID, storage.ErrNotFound)
	}
	s.items[rec.ID] = rec
	return rec, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	return rec, nil
}

// List returns a copy ordered by date, then id.
func (s *Store) List(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	out := make([]core.ExpenseRecord, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
