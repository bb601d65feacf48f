// Package form implements the expense entry session: the state machine that
// moves a draft between create, edit and submission and keeps the two shares
// consistent with the total while the user types.
package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"condivise/internal/core"
	"condivise/internal/log"
)

type State int

const (
	StateClosed State = iota
	StateCreate
	StateEdit
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateCreate:
		return "create"
	case StateEdit:
		return "edit"
	case StateSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

var (
	ErrClosed            = errors.New("form is closed")
	ErrSubmitting        = errors.New("submission in progress")
	ErrNoRecordID        = errors.New("record has no id")
	ErrImbalanceDeclined = errors.New("unbalanced split not confirmed")
)

// Gateway persists records in the remote store.
type Gateway interface {
	Create(ctx context.Context, rec core.ExpenseRecord) (int64, error)
	Update(ctx context.Context, id int64, rec core.ExpenseRecord) error
	Delete(ctx context.Context, id int64) error
}

// Confirmer asks the user to approve the two soft-gated actions.
type Confirmer interface {
	// ConfirmImbalance is asked when the shares do not add up to the total.
	ConfirmImbalance(ctx context.Context, sum, total core.Money) bool
	ConfirmDelete(ctx context.Context, id int64) bool
}

// Refresher re-derives the surrounding view from the authoritative store
// after a successful mutation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Draft is the partially filled record under edit.
type Draft struct {
	Date        core.Date
	Description string
	Category    string
	PaymentMode string
	PaidBy      core.Participant
	Total       core.Money
	Share1      core.Money
	Share2      core.Money
}

// Record assembles the record to send to the gateway.
func (d Draft) Record(id int64) core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:          id,
		Date:        d.Date,
		Description: d.Description,
		Category:    d.Category,
		PaymentMode: d.PaymentMode,
		Total:       d.Total,
		PaidBy:      d.PaidBy,
		Share1:      d.Share1,
		Share2:      d.Share2,
	}
}

// Session is one entry form. All methods are safe for concurrent use, but
// the session assumes a single driver: it rejects edits while a submission
// is in flight rather than queueing them.
type Session struct {
	mu sync.Mutex

	state       State
	prevState   State // state to return to when a submission fails
	recordID    int64
	draft       Draft
	splitLocked bool

	gateway   Gateway
	refresher Refresher
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*Session)

// WithClock sets the source of "today" for new drafts.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithRefresher(r Refresher) Option {
	return func(s *Session) { s.refresher = r }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l.WithComponent(log.ComponentForm) }
}

func NewSession(gw Gateway, opts ...Option) *Session {
	s := &Session{
		gateway: gw,
		now:     time.Now,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenCreate starts a fresh draft dated today in equal split mode. Any
// draft already open is discarded.
func (s *Session) OpenCreate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrSubmitting
	}
	s.state = StateCreate
	s.recordID = 0
	s.draft = Draft{Date: core.DateOf(s.now())}
	s.splitLocked = true
	s.draft.Share1, s.draft.Share2 = core.EqualSplit(s.draft.Total)
	s.logger.Debug("Form opened", log.FieldState, s.state.String())
	return nil
}

// OpenEdit rehydrates rec into the draft. The equal split lock is inferred
// from the amounts, so opening the same record twice yields the same
// session.
func (s *Session) OpenEdit(rec core.ExpenseRecord) error {
	if rec.ID == 0 {
		return ErrNoRecordID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrSubmitting
	}
	s.state = StateEdit
	s.recordID = rec.ID
	s.draft = Draft{
		Date:        rec.Date,
		Description: rec.Description,
		Category:    rec.Category,
		PaymentMode: rec.PaymentMode,
		PaidBy:      rec.PaidBy,
		Total:       rec.Total,
		Share1:      rec.Share1,
		Share2:      rec.Share2,
	}
	mode := core.InferSplitMode(rec.Total, rec.Share1, rec.Share2)
	s.splitLocked = mode == core.SplitEqual
	s.logger.Debug("Form opened",
		log.FieldState, s.state.String(),
		log.FieldExpenseID, rec.ID,
		log.FieldSplitMode, mode.String())
	return nil
}

// Cancel discards the draft. Closing an already closed form is a no-op.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrSubmitting
	}
	s.reset()
	return nil
}

func (s *Session) reset() {
	s.state = StateClosed
	s.prevState = StateClosed
	s.recordID = 0
	s.draft = Draft{}
	s.splitLocked = false
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RecordID is the id being edited, zero in create mode.
func (s *Session) RecordID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SplitLocked reports whether the shares are derived from the total.
func (s *Session) SplitLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.splitLocked
}

// SharesEditable is the inverse of SplitLocked on an open form.
func (s *Session) SharesEditable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editable() == nil && !s.splitLocked
}

// Balance is the current remaining amount and whether it is tolerable.
func (s *Session) Balance() core.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CheckBalance(s.draft.Total, s.draft.Share1, s.draft.Share2)
}

func (s *Session) editable() error {
	switch s.state {
	case StateCreate, StateEdit:
		return nil
	case StateSubmitting:
		return ErrSubmitting
	default:
		return ErrClosed
	}
}

func (s *Session) edit(f func(d *Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	f(&s.draft)
	return nil
}

func (s *Session) SetDate(d core.Date) error {
	return s.edit(func(dr *Draft) { dr.Date = d })
}

func (s *Session) SetDescription(v string) error {
	return s.edit(func(dr *Draft) { dr.Description = v })
}

func (s *Session) SetCategory(v string) error {
	return s.edit(func(dr *Draft) { dr.Category = v })
}

func (s *Session) SetPaymentMode(v string) error {
	return s.edit(func(dr *Draft) { dr.PaymentMode = v })
}

func (s *Session) SetPaidBy(p core.Participant) error {
	return s.edit(func(dr *Draft) { dr.PaidBy = p })
}

// SetTotal updates the total. While the split is locked both shares follow.
func (s *Session) SetTotal(m core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.draft.Total = m
	if s.splitLocked {
		s.draft.Share1, s.draft.Share2 = core.EqualSplit(m)
	}
	return nil
}

// SetShare1 records a manual edit of the first share and releases the lock.
func (s *Session) SetShare1(m core.Money) error {
	return s.setShare(func(d *Draft) { d.Share1 = m })
}

// SetShare2 records a manual edit of the second share and releases the lock.
func (s *Session) SetShare2(m core.Money) error {
	return s.setShare(func(d *Draft) { d.Share2 = m })
}

func (s *Session) setShare(f func(d *Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	f(&s.draft)
	s.splitLocked = false
	return nil
}

// SetEqualSplit toggles the lock. Locking recomputes both shares from the
// current total, overwriting manual values.
func (s *Session) SetEqualSplit(locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.splitLocked = locked
	if locked {
		s.draft.Share1, s.draft.Share2 = core.EqualSplit(s.draft.Total)
	}
	return nil
}
