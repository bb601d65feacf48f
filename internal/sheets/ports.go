// Package sheets defines the journal port the worker mirrors ledger
// changes into. The Google Sheets adapter lives in sheets/google.
package sheets

import (
	"context"
	"strconv"
	"time"

	"condivise/internal/api"
)

// JournalEntry is one ledger change as it is written to the journal.
type JournalEntry struct {
	OccurredAt time.Time
	MessageID  string
	Event      string
	Expense    api.Expense
}

// JournalWriter appends journal entries to an outbound store.
type JournalWriter interface {
	AppendJournal(ctx context.Context, entry JournalEntry) error
}

// Header is the column order of a journal row.
var Header = []string{
	"Occurred At", "Event", "Message ID", "Expense ID", "Date", "Description",
	"Category", "Payment Mode", "Total", "Paid By", "Person 1 Share", "Person 2 Share",
}

// Row renders e in Header order. Amounts absent from the event, as on
// deletions, are left blank.
func (e JournalEntry) Row() []string {
	amount := func(a *api.Amount) string {
		if a == nil {
			return ""
		}
		return a.StringFixed(2)
	}
	x := e.Expense
	return []string{
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.Event,
		e.MessageID,
		strconv.FormatInt(x.ID, 10),
		x.Date,
		x.Description,
		x.Category,
		x.PaymentMode,
		amount(x.TotalAmount),
		x.PaidBy,
		amount(x.Person1Share),
		amount(x.Person2Share),
	}
}
