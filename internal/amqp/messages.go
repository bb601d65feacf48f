package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"condivise/internal/api"
)

// EventType names the ledger change an event describes.
type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// ExpenseEvent is published after every successful ledger mutation.
// Deleted events carry only the expense id.
type ExpenseEvent struct {
	MessageID  string      `json:"message_id"`
	Type       EventType   `json:"type"`
	Expense    api.Expense `json:"expense"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func NewExpenseEvent(kind EventType, expense api.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		MessageID:  uuid.NewString(),
		Type:       kind,
		Expense:    expense,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes an event and rejects unknown types.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.Expense.ID == 0 {
		return nil, fmt.Errorf("event %s has no expense id", ev.MessageID)
	}
	return &ev, nil
}
