// Package api defines the JSON contract between the entry client and the
// record store server.
package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"condivise/internal/core"
)

// Routes of the record store.
const (
	PathAddExpense    = "/add_expense"
	PathEditExpense   = "/edit_expense/{id}"
	PathDeleteExpense = "/delete_expense/{id}"
	PathListExpenses  = "/expenses"
)

// EditPath and DeletePath expand the {id} routes.
func EditPath(id int64) string   { return fmt.Sprintf("/edit_expense/%d", id) }
func DeletePath(id int64) string { return fmt.Sprintf("/delete_expense/%d", id) }

// Amount is a currency value encoded as a bare JSON number with two
// decimals. Quoted numbers are accepted on input.
type Amount struct {
	decimal.Decimal
}

func AmountOf(m core.Money) Amount { return Amount{m.Decimal()} }

func (a Amount) Money() core.Money { return core.MoneyFromDecimal(a.Decimal) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// Expense is the wire form of core.ExpenseRecord. Amount pointers
// distinguish "absent" from zero so the server can report missing fields.
type Expense struct {
	ID           int64   `json:"id,omitempty"`
	Date         string  `json:"date"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	PaymentMode  string  `json:"payment_mode"`
	TotalAmount  *Amount `json:"total_amount"`
	PaidBy       string  `json:"paid_by"`
	Person1Share *Amount `json:"person1_share"`
	Person2Share *Amount `json:"person2_share"`
}

func amountPtr(m core.Money) *Amount {
	a := AmountOf(m)
	return &a
}

func FromRecord(r core.ExpenseRecord) Expense {
	return Expense{
		ID:           r.ID,
		Date:         r.Date.String(),
		Description:  r.Description,
		Category:     r.Category,
		PaymentMode:  r.PaymentMode,
		TotalAmount:  amountPtr(r.Total),
		PaidBy:       string(r.PaidBy),
		Person1Share: amountPtr(r.Share1),
		Person2Share: amountPtr(r.Share2),
	}
}

// ErrMissingField matches every *MissingFieldsError.
var ErrMissingField = errors.New("missing required field")

// MissingFieldsError lists the wire fields absent from a request body.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingField }

// Record converts and validates e. Required fields are date, description,
// total_amount, paid_by, person1_share and person2_share.
func (e Expense) Record() (core.ExpenseRecord, error) {
	var missing []string
	if strings.TrimSpace(e.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(e.Description) == "" {
		missing = append(missing, "description")
	}
	if e.TotalAmount == nil {
		missing = append(missing, "total_amount")
	}
	if strings.TrimSpace(e.PaidBy) == "" {
		missing = append(missing, "paid_by")
	}
	if e.Person1Share == nil {
		missing = append(missing, "person1_share")
	}
	if e.Person2Share == nil {
		missing = append(missing, "person2_share")
	}
	if len(missing) > 0 {
		return core.ExpenseRecord{}, &MissingFieldsError{Fields: missing}
	}

	date, err := core.ParseDate(e.Date)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	paidBy, err := core.ParseParticipant(e.PaidBy)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec := core.ExpenseRecord{
		ID:          e.ID,
		Date:        date,
		Description: strings.TrimSpace(e.Description),
		Category:    strings.TrimSpace(e.Category),
		PaymentMode: strings.TrimSpace(e.PaymentMode),
		Total:       e.TotalAmount.Money(),
		PaidBy:      paidBy,
		Share1:      e.Person1Share.Money(),
		Share2:      e.Person2Share.Money(),
	}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	return rec, nil
}

// Summary is the wire form of core.Summary.
type Summary struct {
	Count        int    `json:"count"`
	Total        Amount `json:"total"`
	Person1Total Amount `json:"person1_total"`
	Person2Total Amount `json:"person2_total"`
	Person1Spent Amount `json:"person1_spent"`
	Person2Spent Amount `json:"person2_spent"`
}

func FromSummary(s core.Summary) Summary {
	return Summary{
		Count:        s.Count,
		Total:        AmountOf(s.Total),
		Person1Total: AmountOf(s.Share1Total),
		Person2Total: AmountOf(s.Share2Total),
		Person1Spent: AmountOf(s.Spent1),
		Person2Spent: AmountOf(s.Spent2),
	}
}

// Response is the envelope of every store reply. Success is a pointer so a
// reply without the field can be told apart from an explicit false.
type Response struct {
	Success  *bool     `json:"success"`
	Error    string    `json:"error,omitempty"`
	ID       int64     `json:"id,omitempty"`
	Expense  *Expense  `json:"expense,omitempty"`
	Expenses []Expense `json:"expenses,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
}

func OK() Response {
	t := true
	return Response{Success: &t}
}

func Fail(msg string) Response {
	f := false
	return Response{Success: &f, Error: msg}
}

// Succeeded reports an explicit success:true.
func (r Response) Succeeded() bool {
	return r.Success != nil && *r.Success
}
