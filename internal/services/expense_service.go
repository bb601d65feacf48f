// Package services orchestrates ledger mutations across the record store,
// the read cache and the change-event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"condivise/internal/amqp"
	"condivise/internal/api"
	"condivise/internal/cache"
	"condivise/internal/core"
	"condivise/internal/log"
	"condivise/internal/metrics"
	"condivise/internal/storage"
)

const ledgerKey = "ledger"

// Publisher emits change events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.ExpenseEvent) error
	Close() error
}

// Ledger is every record with its summary.
type Ledger struct {
	Records []core.ExpenseRecord
	Summary core.Summary
}

type ExpenseService struct {
	repo      storage.Repository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger

	// cacheMu orders ledger fills against invalidations. generation moves
	// on every successful mutation; a fill that started under an older
	// generation is dropped.
	cacheMu    sync.Mutex
	cache      cache.Cache[Ledger]
	generation uint64
}

type Option func(*ExpenseService)

// WithPublisher enables change events. A nil publisher disables them.
func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithCache(c cache.Cache[Ledger]) Option {
	return func(s *ExpenseService) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ExpenseService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) { s.logger = l.WithComponent(log.ComponentExpense) }
}

func NewExpenseService(repo storage.Repository, opts ...Option) *ExpenseService {
	s := &ExpenseService{repo: repo, logger: log.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRejection reports whether err is the caller's fault: invalid input
// or an unknown id.
func IsRejection(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidAmount,
		core.ErrNegativeAmount,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrCategoryTooLong,
		core.ErrPaymentModeTooLong,
		core.ErrInvalidParticipant,
		api.ErrMissingField,
		storage.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CreateExpense validates and stores rec, then announces it.
func (s *ExpenseService) CreateExpense(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	rec.ID = 0
	if err := rec.Validate(); err != nil {
		s.count(log.OpCreate, err)
		return core.ExpenseRecord{}, err
	}
	stored, err := s.repo.Create(ctx, rec)
	s.count(log.OpCreate, err)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate()
	s.logMutation(ctx, log.OpCreate, stored)
	s.publish(ctx, amqp.EventCreated, api.FromRecord(stored))
	return stored, nil
}

// UpdateExpense replaces the record with rec.ID.
func (s *ExpenseService) UpdateExpense(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	if err := rec.Validate(); err != nil {
		s.count(log.OpUpdate, err)
		return core.ExpenseRecord{}, err
	}
	stored, err := s.repo.Update(ctx, rec)
	s.count(log.OpUpdate, err)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("update expense: %w", err)
	}
	s.invalidate()
	s.logMutation(ctx, log.OpUpdate, stored)
	s.publish(ctx, amqp.EventUpdated, api.FromRecord(stored))
	return stored, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	s.count(log.OpDelete, err)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)
	s.publish(ctx, amqp.EventDeleted, api.Expense{ID: id})
	return nil
}

// Ledger returns every record and the summary, from cache when fresh.
func (s *ExpenseService) Ledger(ctx context.Context) (Ledger, error) {
	if s.cache != nil {
		if l, ok := s.cache.Get(ledgerKey); ok {
			s.lookup("hit")
			return l, nil
		}
		s.lookup("miss")
	}
	gen := s.currentGeneration()
	records, err := s.repo.List(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("list expenses: %w", err)
	}
	l := Ledger{Records: records, Summary: core.Summarize(records)}
	s.fill(gen, l)
	return l, nil
}

func (s *ExpenseService) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// fill caches l unless a mutation landed after gen was read.
func (s *ExpenseService) fill(gen uint64, l Ledger) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen == s.generation {
		s.cache.Set(ledgerKey, l)
	}
}

func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *ExpenseService) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	if s.cache != nil {
		s.cache.Purge()
	}
}

// publish never fails the mutation; the record is already stored.
func (s *ExpenseService) publish(ctx context.Context, kind amqp.EventType, e api.Expense) {
	if s.publisher == nil {
		return
	}
	ev := amqp.NewExpenseEvent(kind, e)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, e.ID,
			log.FieldMessageID, ev.MessageID,
			log.FieldError, err)
	}
}

func (s *ExpenseService) logMutation(ctx context.Context, op string, rec core.ExpenseRecord) {
	fields := log.NewFields().
		WithOperation(op).
		WithExpense(rec.ID, rec.Description, rec.Total.Cents, rec.Share1.Cents, rec.Share2.Cents)
	s.logger.InfoContext(ctx, "Expense stored", fields.ToSlice()...)
}

func (s *ExpenseService) count(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case IsRejection(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.Mutations.WithLabelValues(op, outcome).Inc()
}

func (s *ExpenseService) lookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

// Close closes the store and the publisher.
func (s *ExpenseService) Close() error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
