package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Person1 Participant = "person1"
	Person2 Participant = "person2"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Column widths, in characters.
const (
	MaxDescriptionLen = 200
	MaxCategoryLen    = 50
	MaxPaymentModeLen = 50
)

type (
	// Participant identifies one of the two people sharing expenses.
	Participant string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseRecord is the persisted unit. ID is zero until the store
	// assigns one.
	ExpenseRecord struct {
		ID          int64
		Date        Date
		Description string
		Category    string
		PaymentMode string
		Total       Money
		PaidBy      Participant
		Share1      Money
		Share2      Money
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLen)
	ErrCategoryTooLong    = fmt.Errorf("category too long (max %d characters)", MaxCategoryLen)
	ErrPaymentModeTooLong = fmt.Errorf("payment mode too long (max %d characters)", MaxPaymentModeLen)
	ErrInvalidParticipant = errors.New("invalid participant")
)

func (p Participant) Valid() bool {
	return p == Person1 || p == Person2
}

// Other returns the participant that is not p.
func (p Participant) Other() Participant {
	if p == Person1 {
		return Person2
	}
	return Person1
}

func ParseParticipant(s string) (Participant, error) {
	p := Participant(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidParticipant, s)
	}
	return p, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Validate applies the store-side rules. Category and payment mode are
// only required by the entry form, so legacy rows without them still load.
func (e ExpenseRecord) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if utf8.RuneCountInString(e.Category) > MaxCategoryLen {
		return ErrCategoryTooLong
	}
	if utf8.RuneCountInString(e.PaymentMode) > MaxPaymentModeLen {
		return ErrPaymentModeTooLong
	}
	if !e.PaidBy.Valid() {
		return ErrInvalidParticipant
	}
	for _, m := range []Money{e.Total, e.Share1, e.Share2} {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ShareOf returns the share owed by p.
func (e ExpenseRecord) ShareOf(p Participant) Money {
	if p == Person2 {
		return e.Share2
	}
	return e.Share1
}

// Balance reports how the shares of e relate to its total.
func (e ExpenseRecord) Balance() Balance {
	return CheckBalance(e.Total, e.Share1, e.Share2)
}
