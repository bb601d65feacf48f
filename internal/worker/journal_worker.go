// Package worker mirrors ledger change events into the journal.
package worker

import (
	"context"
	"fmt"
	"time"

	"condivise/internal/amqp"
	"condivise/internal/cache"
	"condivise/internal/log"
	"condivise/internal/metrics"
	"condivise/internal/sheets"
)

// seenTTL bounds how long a message id is remembered for redelivery checks.
const seenTTL = 24 * time.Hour

// JournalWorker writes one journal row per change event. Redelivered
// events whose id was already written are acknowledged without a write.
type JournalWorker struct {
	journal sheets.JournalWriter
	seen    *cache.LRUCache[struct{}]
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewJournalWorker(journal sheets.JournalWriter, m *metrics.Metrics, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalWorker{
		journal: journal,
		seen:    cache.NewLRUCache[struct{}](4096, seenTTL),
		metrics: m,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the redelivery cache so the caller can register it for
// periodic sweeps.
func (w *JournalWorker) Seen() cache.Cleaner { return w.seen }

// HandleEvent is an amqp.Handler.
func (w *JournalWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if _, dup := w.seen.Get(ev.MessageID); dup {
		w.logger.DebugContext(ctx, "Skipping duplicate event", log.FieldMessageID, ev.MessageID)
		w.observe("duplicate")
		return nil
	}

	entry := sheets.JournalEntry{
		OccurredAt: ev.OccurredAt,
		MessageID:  ev.MessageID,
		Event:      string(ev.Type),
		Expense:    ev.Expense,
	}
	if err := w.journal.AppendJournal(ctx, entry); err != nil {
		w.observe(metrics.OutcomeError)
		return fmt.Errorf("mirror event %s: %w", ev.MessageID, err)
	}
	w.seen.Set(ev.MessageID, struct{}{})
	w.observe(metrics.OutcomeOK)
	w.logger.InfoContext(ctx, "Event mirrored to journal",
		log.FieldMessageID, ev.MessageID,
		log.FieldExpenseID, ev.Expense.ID,
		"type", ev.Type)
	return nil
}

func (w *JournalWorker) observe(outcome string) {
	if w.metrics != nil {
		w.metrics.EventsMirrored.WithLabelValues(outcome).Inc()
	}
}

// LogJournal is the journal used when no spreadsheet is configured: it
// only logs each entry.
type LogJournal struct {
	Logger *log.Logger
}

func (j LogJournal) AppendJournal(ctx context.Context, e sheets.JournalEntry) error {
	j.Logger.InfoContext(ctx, "Journal entry",
		log.FieldMessageID, e.MessageID,
		log.FieldExpenseID, e.Expense.ID,
		"type", e.Event)
	return nil
}
