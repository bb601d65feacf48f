package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condivise/internal/core"
)

type fakeGateway struct {
	created []core.ExpenseRecord
	updated []core.ExpenseRecord
	deleted []int64
	nextID  int64
	err     error
	// hook runs inside the call, while the session is submitting
	hook func()
}

func (g *fakeGateway) Create(_ context.Context, rec core.ExpenseRecord) (int64, error) {
	if g.hook != nil {
		g.hook()
	}
	if g.err != nil {
		return 0, g.err
	}
	g.nextID++
	g.created = append(g.created, rec)
	return g.nextID, nil
}

func (g *fakeGateway) Update(_ context.Context, id int64, rec core.ExpenseRecord) error {
	if g.hook != nil {
		g.hook()
	}
	if g.err != nil {
		return g.err
	}
	rec.ID = id
	g.updated = append(g.updated, rec)
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, id int64) error {
	if g.err != nil {
		return g.err
	}
	g.deleted = append(g.deleted, id)
	return nil
}

type countingConfirmer struct {
	answer     bool
	imbalances int
	deletes    int
}

func (c *countingConfirmer) ConfirmImbalance(context.Context, core.Money, core.Money) bool {
	c.imbalances++
	return c.answer
}

func (c *countingConfirmer) ConfirmDelete(context.Context, int64) bool {
	c.deletes++
	return c.answer
}

var fixedNow = time.Date(2025, 6, 14, 18, 30, 0, 0, time.UTC)

func newTestSession(gw *fakeGateway, opts ...Option) *Session {
	return NewSession(gw, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func fillRequired(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SetDescription("Groceries"))
	require.NoError(t, s.SetCategory("Food"))
	require.NoError(t, s.SetPaymentMode("Card"))
	require.NoError(t, s.SetPaidBy(core.Person1))
}

func stored(id int64, total, s1, s2 int64) core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:          id,
		Date:        core.NewDate(2025, 5, 1),
		Description: "Rent",
		Category:    "Housing",
		PaymentMode: "Transfer",
		Total:       core.Cents(total),
		PaidBy:      core.Person2,
		Share1:      core.Cents(s1),
		Share2:      core.Cents(s2),
	}
}

func TestOpenCreateDefaults(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	require.NoError(t, s.OpenCreate())

	d := s.Draft()
	assert.Equal(t, StateCreate, s.State())
	assert.Equal(t, core.NewDate(2025, 6, 14), d.Date)
	assert.True(t, s.SplitLocked())
	assert.False(t, s.SharesEditable())
	assert.Equal(t, core.Cents(0), d.Share1)
	assert.Equal(t, core.Cents(0), d.Share2)
	assert.Zero(t, s.RecordID())
}

func TestOpenEditInfersSplitMode(t *testing.T) {
	tests := []struct {
		name       string
		rec        core.ExpenseRecord
		wantLocked bool
	}{
		{"fifty fifty", stored(7, 10000, 5000, 5000), true},
		{"forty sixty", stored(7, 10000, 4000, 6000), false},
		{"odd cent equal", stored(7, 10001, 5001, 5001), true},
		{"equal but short", stored(7, 10000, 4000, 4000), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(&fakeGateway{})
			require.NoError(t, s.OpenEdit(tt.rec))
			assert.Equal(t, StateEdit, s.State())
			assert.Equal(t, tt.rec.ID, s.RecordID())
			assert.Equal(t, tt.wantLocked, s.SplitLocked())
			assert.Equal(t, !tt.wantLocked, s.SharesEditable())
			assert.Equal(t, tt.rec, s.Draft().Record(s.RecordID()))
		})
	}
}

func TestOpenEditIsIdempotent(t *testing.T) {
	rec := stored(3, 10000, 4000, 6000)
	s := newTestSession(&fakeGateway{})

	require.NoError(t, s.OpenEdit(rec))
	firstDraft, firstLock := s.Draft(), s.SplitLocked()
	require.NoError(t, s.OpenEdit(rec))

	assert.Equal(t, firstDraft, s.Draft())
	assert.Equal(t, firstLock, s.SplitLocked())
}

func TestOpenEditRequiresID(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	assert.ErrorIs(t, s.OpenEdit(stored(0, 100, 50, 50)), ErrNoRecordID)
	assert.Equal(t, StateClosed, s.State())
}

func TestOpenCreateDoesNotLeakEditState(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	require.NoError(t, s.OpenEdit(stored(9, 10000, 4000, 6000)))
	require.NoError(t, s.OpenCreate())

	d := s.Draft()
	assert.Zero(t, s.RecordID())
	assert.Empty(t, d.Description)
	assert.True(t, s.SplitLocked())
	assert.Equal(t, core.Cents(0), d.Total)
}

func TestTotalEditFollowsLock(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	require.NoError(t, s.OpenCreate())

	require.NoError(t, s.SetTotal(core.Cents(10001)))
	d := s.Draft()
	assert.Equal(t, core.Cents(5001), d.Share1)
	assert.Equal(t, core.Cents(5001), d.Share2)
	assert.True(t, s.SplitLocked(), "editing the total must not break the lock")
	assert.True(t, s.Balance().WithinTolerance)
}

func TestShareEditBreaksLock(t *testing.T) {
	for _, edit := range []func(*Session) error{
		func(s *Session) error { return s.SetShare1(core.Cents(7000)) },
		func(s *Session) error { return s.SetShare2(core.Cents(7000)) },
	} {
		s := newTestSession(&fakeGateway{})
		require.NoError(t, s.OpenCreate())
		require.NoError(t, s.SetTotal(core.Cents(10000)))
		require.NoError(t, edit(s))

		assert.False(t, s.SplitLocked())
		assert.True(t, s.SharesEditable())
		assert.Equal(t, core.Cents(-2000), s.Balance().Remaining)

		// Further total edits leave manual shares alone.
		require.NoError(t, s.SetTotal(core.Cents(20000)))
		d := s.Draft()
		assert.NotEqual(t, d.Share1, d.Share2)
	}
}

func TestRelockRecomputes(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	require.NoError(t, s.OpenEdit(stored(4, 10100, 3000, 7100)))
	require.False(t, s.SplitLocked())

	require.NoError(t, s.SetEqualSplit(true))
	d := s.Draft()
	assert.True(t, s.SplitLocked())
	assert.Equal(t, core.Cents(5050), d.Share1)
	assert.Equal(t, core.Cents(5050), d.Share2)

	// Unlocking keeps the values.
	require.NoError(t, s.SetEqualSplit(false))
	assert.Equal(t, core.Cents(5050), s.Draft().Share1)
	assert.True(t, s.SharesEditable())
}

func TestEditsRejectedWhenClosed(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	assert.ErrorIs(t, s.SetTotal(core.Cents(1)), ErrClosed)
	assert.ErrorIs(t, s.SetShare1(core.Cents(1)), ErrClosed)
	assert.ErrorIs(t, s.SetEqualSplit(true), ErrClosed)
	assert.ErrorIs(t, s.SetDescription("x"), ErrClosed)
	_, err := s.Submit(context.Background(), &countingConfirmer{answer: true})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCancelDiscardsDraft(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	require.NoError(t, s.OpenEdit(stored(2, 10000, 5000, 5000)))
	require.NoError(t, s.SetDescription("changed"))

	require.NoError(t, s.Cancel())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, Draft{}, s.Draft())
	assert.Zero(t, s.RecordID())

	require.NoError(t, s.Cancel(), "cancel on a closed form is a no-op")
}

func TestSubmitMissingFieldsMakesNoCall(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(gw)
	require.NoError(t, s.OpenCreate())
	fillRequired(t, s)
	require.NoError(t, s.SetDescription("  "))
	require.NoError(t, s.SetPaidBy(""))

	_, err := s.Submit(context.Background(), &countingConfirmer{answer: true})

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []Field{FieldDescription, FieldPaidBy}, missing.Fields)
	assert.Equal(t, "missing required fields: description, paid_by", err.Error())
	assert.Empty(t, gw.created)
	assert.Equal(t, StateCreate, s.State())
}

func TestSubmitEqualSplitCreates(t *testing.T) {
	gw := &fakeGateway{nextID: 41}
	refreshed := 0
	s := newTestSession(gw, WithRefresher(RefreshFunc(func(context.Context) error {
		refreshed++
		return nil
	})))
	require.NoError(t, s.OpenCreate())
	fillRequired(t, s)
	require.NoError(t, s.SetTotal(core.Cents(10000)))

	confirm := &countingConfirmer{}
	id, err := s.Submit(context.Background(), confirm)
	require.NoError(t, err)

	assert.Equal(t, int64(42), id)
	require.Len(t, gw.created, 1)
	got := gw.created[0]
	assert.Equal(t, core.Cents(5000), got.Share1)
	assert.Equal(t, core.Cents(5000), got.Share2)
	assert.Equal(t, core.Person1, got.PaidBy)
	assert.Zero(t, got.ID)
	assert.Zero(t, confirm.imbalances)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, refreshed)
}

func TestSubmitSmallRemainderNeedsNoConfirmation(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(gw)
	require.NoError(t, s.OpenCreate())
	fillRequired(t, s)
	require.NoError(t, s.SetTotal(core.Cents(10001)))
	require.NoError(t, s.SetShare1(core.Cents(6000)))
	require.NoError(t, s.SetShare2(core.Cents(4000)))
	assert.Equal(t, core.Cents(1), s.Balance().Remaining)

	confirm := &countingConfirmer{}
	_, err := s.Submit(context.Background(), confirm)
	require.NoError(t, err)
	assert.Zero(t, confirm.imbalances)
	assert.Len(t, gw.created, 1)
}

func TestSubmitImbalanceGate(t *testing.T) {
	setup := func(gw *fakeGateway) *Session {
		s := newTestSession(gw)
		require.NoError(t, s.OpenCreate())
		fillRequired(t, s)
		require.NoError(t, s.SetTotal(core.Cents(10000)))
		require.NoError(t, s.SetShare1(core.Cents(7000)))
		require.NoError(t, s.SetShare2(core.Cents(1000)))
		return s
	}

	t.Run("declined", func(t *testing.T) {
		gw := &fakeGateway{}
		s := setup(gw)
		confirm := &countingConfirmer{answer: false}
		_, err := s.Submit(context.Background(), confirm)
		assert.ErrorIs(t, err, ErrImbalanceDeclined)
		assert.Equal(t, 1, confirm.imbalances)
		assert.Empty(t, gw.created)
		assert.Equal(t, StateCreate, s.State())
		assert.Equal(t, core.Cents(2000), s.Balance().Remaining)
	})

	t.Run("nil confirmer declines", func(t *testing.T) {
		gw := &fakeGateway{}
		s := setup(gw)
		_, err := s.Submit(context.Background(), nil)
		assert.ErrorIs(t, err, ErrImbalanceDeclined)
	})

	t.Run("confirmed", func(t *testing.T) {
		gw := &fakeGateway{}
		s := setup(gw)
		confirm := &countingConfirmer{answer: true}
		_, err := s.Submit(context.Background(), confirm)
		require.NoError(t, err)
		assert.Equal(t, 1, confirm.imbalances)
		require.Len(t, gw.created, 1)
		assert.Equal(t, core.Cents(7000), gw.created[0].Share1)
	})
}

func TestSubmitEditSendsID(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(gw)
	require.NoError(t, s.OpenEdit(stored(12, 10000, 4000, 6000)))
	require.NoError(t, s.SetDescription("Rent June"))

	id, err := s.Submit(context.Background(), &countingConfirmer{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	require.Len(t, gw.updated, 1)
	assert.Equal(t, int64(12), gw.updated[0].ID)
	assert.Equal(t, "Rent June", gw.updated[0].Description)
	assert.Empty(t, gw.created)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	remote := errors.New("Expense not found")
	gw := &fakeGateway{err: remote}
	refreshed := false
	s := newTestSession(gw, WithRefresher(RefreshFunc(func(context.Context) error {
		refreshed = true
		return nil
	})))
	require.NoError(t, s.OpenEdit(stored(5, 10000, 5000, 5000)))
	before := s.Draft()

	_, err := s.Submit(context.Background(), &countingConfirmer{})
	assert.Same(t, remote, err)
	assert.Equal(t, StateEdit, s.State())
	assert.Equal(t, int64(5), s.RecordID())
	assert.Equal(t, before, s.Draft())
	assert.True(t, s.SplitLocked())
	assert.False(t, refreshed)

	// Retry without re-entering anything.
	gw.err = nil
	_, err = s.Submit(context.Background(), &countingConfirmer{})
	require.NoError(t, err)
	assert.Len(t, gw.updated, 1)
}

func TestSubmittingRejectsEdits(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(gw)
	require.NoError(t, s.OpenCreate())
	fillRequired(t, s)

	var during []error
	gw.hook = func() {
		assert.Equal(t, StateSubmitting, s.State())
		during = append(during,
			s.SetTotal(core.Cents(1)),
			s.SetShare1(core.Cents(1)),
			s.Cancel(),
			s.OpenCreate(),
		)
		_, err := s.Submit(context.Background(), nil)
		during = append(during, err)
	}

	_, err := s.Submit(context.Background(), &countingConfirmer{})
	require.NoError(t, err)
	require.Len(t, during, 5)
	for _, e := range during {
		assert.ErrorIs(t, e, ErrSubmitting)
	}
	assert.Len(t, gw.created, 1)
}

func TestRefreshFailureDoesNotFailSubmit(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(gw, WithRefresher(RefreshFunc(func(context.Context) error {
		return errors.New("list unavailable")
	})))
	require.NoError(t, s.OpenCreate())
	fillRequired(t, s)

	_, err := s.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, s.State())
}

func TestDeleteIsGated(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(gw)

	ok, err := s.Delete(context.Background(), 8, &countingConfirmer{answer: false})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, gw.deleted)

	ok, err = s.Delete(context.Background(), 8, Confirm{Delete: func(context.Context, int64) bool { return true }})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{8}, gw.deleted)

	_, err = s.Delete(context.Background(), 0, &countingConfirmer{answer: true})
	assert.ErrorIs(t, err, ErrNoRecordID)
}

func TestDeleteFailureIsReturned(t *testing.T) {
	gw := &fakeGateway{err: errors.New("boom")}
	s := newTestSession(gw)
	ok, err := s.Delete(context.Background(), 3, &countingConfirmer{answer: true})
	assert.False(t, ok)
	assert.EqualError(t, err, "boom")
}

func TestImbalancePrompt(t *testing.T) {
	assert.Equal(t,
		"The sum of shares (80.00) does not equal the total amount (100.00). Do you want to continue anyway?",
		ImbalancePrompt(core.Cents(8000), core.Cents(10000)))
}
