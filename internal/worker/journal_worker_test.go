package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condivise/internal/amqp"
	"condivise/internal/api"
	"condivise/internal/log"
	"condivise/internal/metrics"
	"condivise/internal/sheets"
)

type fakeJournal struct {
	entries []sheets.JournalEntry
	err     error
}

func (f *fakeJournal) AppendJournal(_ context.Context, e sheets.JournalEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func TestHandleEventWritesJournalRow(t *testing.T) {
	j := &fakeJournal{}
	m := metrics.New()
	w := NewJournalWorker(j, m, nil)

	ev := amqp.NewExpenseEvent(amqp.EventCreated, api.Expense{ID: 5, Description: "Train"})
	require.NoError(t, w.HandleEvent(context.Background(), ev))

	require.Len(t, j.entries, 1)
	assert.Equal(t, "expense.created", j.entries[0].Event)
	assert.Equal(t, ev.MessageID, j.entries[0].MessageID)
	assert.Equal(t, "Train", j.entries[0].Expense.Description)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsMirrored.WithLabelValues(metrics.OutcomeOK)))
}

func TestHandleEventSkipsRedelivery(t *testing.T) {
	j := &fakeJournal{}
	m := metrics.New()
	w := NewJournalWorker(j, m, nil)
	ev := amqp.NewExpenseEvent(amqp.EventDeleted, api.Expense{ID: 9})

	require.NoError(t, w.HandleEvent(context.Background(), ev))
	require.NoError(t, w.HandleEvent(context.Background(), ev))

	assert.Len(t, j.entries, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsMirrored.WithLabelValues("duplicate")))
}

func TestHandleEventFailureIsRetryable(t *testing.T) {
	j := &fakeJournal{err: errors.New("quota exceeded")}
	m := metrics.New()
	w := NewJournalWorker(j, m, nil)
	ev := amqp.NewExpenseEvent(amqp.EventUpdated, api.Expense{ID: 2})

	err := w.HandleEvent(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	// The failed id is not remembered, so the requeued delivery is written.
	j.err = nil
	require.NoError(t, w.HandleEvent(context.Background(), ev))
	assert.Len(t, j.entries, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsMirrored.WithLabelValues(metrics.OutcomeError)))
}

func TestLogJournal(t *testing.T) {
	j := LogJournal{Logger: log.Discard()}
	assert.NoError(t, j.AppendJournal(context.Background(), sheets.JournalEntry{Event: "expense.created"}))
}
