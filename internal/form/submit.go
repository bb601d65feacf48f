package form

import (
	"context"
	"strings"

	"condivise/internal/core"
	"condivise/internal/log"
)

// Field names a required draft field.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldPaymentMode Field = "payment_mode"
	FieldPaidBy      Field = "paid_by"
)

// MissingFieldsError lists the required fields left blank.
type MissingFieldsError struct {
	Fields []Field
}

func (e *MissingFieldsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return "missing required fields: " + strings.Join(names, ", ")
}

// Missing returns the required fields that d leaves blank, in form order.
func (d Draft) Missing() []Field {
	var out []Field
	if d.Date.IsZero() {
		out = append(out, FieldDate)
	}
	if strings.TrimSpace(d.Description) == "" {
		out = append(out, FieldDescription)
	}
	if strings.TrimSpace(d.Category) == "" {
		out = append(out, FieldCategory)
	}
	if strings.TrimSpace(d.PaymentMode) == "" {
		out = append(out, FieldPaymentMode)
	}
	if !d.PaidBy.Valid() {
		out = append(out, FieldPaidBy)
	}
	return out
}

// Submit validates the draft and hands it to the gateway.
//
// Missing required fields abort with a *MissingFieldsError before any
// network call. An out-of-tolerance split is sent only if c confirms it.
// On success the session closes, the refresher runs, and the stored id is
// returned. On failure the session goes back to its previous state with the
// draft intact and the gateway error is returned unchanged.
func (s *Session) Submit(ctx context.Context, c Confirmer) (int64, error) {
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if missing := s.draft.Missing(); len(missing) > 0 {
		s.mu.Unlock()
		return 0, &MissingFieldsError{Fields: missing}
	}
	s.prevState = s.state
	s.state = StateSubmitting
	id := s.recordID
	rec := s.draft.Record(id)
	s.mu.Unlock()

	if b := rec.Balance(); !b.WithinTolerance {
		sum := rec.Share1.Add(rec.Share2)
		if c == nil || !c.ConfirmImbalance(ctx, sum, rec.Total) {
			s.restore()
			return 0, ErrImbalanceDeclined
		}
		s.logger.InfoContext(ctx, "Unbalanced split confirmed",
			log.FieldRemaining, b.Remaining.Cents,
			log.FieldExpenseID, id)
	}

	var err error
	op := log.OpCreate
	if id != 0 {
		op = log.OpUpdate
		err = s.gateway.Update(ctx, id, rec)
	} else {
		id, err = s.gateway.Create(ctx, rec)
	}
	if err != nil {
		s.restore()
		s.logger.WarnContext(ctx, "Submission failed",
			log.NewFields().
				WithOperation(op).
				WithError(err).
				WithExpense(rec.ID, rec.Description, rec.Total.Cents, rec.Share1.Cents, rec.Share2.Cents).
				ToSlice()...)
		return 0, err
	}

	s.mu.Lock()
	s.reset()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Expense submitted",
		log.NewFields().
			WithOperation(op).
			WithExpense(id, rec.Description, rec.Total.Cents, rec.Share1.Cents, rec.Share2.Cents).
			ToSlice()...)
	s.refresh(ctx)
	return id, nil
}

func (s *Session) restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.prevState
	s.prevState = StateClosed
}

// Delete removes a stored record once c confirms it. It does not touch the
// open draft. The bool reports whether a delete was actually sent and
// succeeded.
func (s *Session) Delete(ctx context.Context, id int64, c Confirmer) (bool, error) {
	if id == 0 {
		return false, ErrNoRecordID
	}
	if c == nil || !c.ConfirmDelete(ctx, id) {
		return false, nil
	}
	if err := s.gateway.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Delete failed",
			log.FieldOperation, log.OpDelete,
			log.FieldExpenseID, id,
			log.FieldError, err.Error())
		return false, err
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)
	s.refresh(ctx)
	return true, nil
}

// refresh failures are logged only: the mutation itself already succeeded.
func (s *Session) refresh(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "View refresh failed", log.FieldError, err.Error())
	}
}

// Confirm adapts two functions to Confirmer. A nil function declines.
type Confirm struct {
	Imbalance func(ctx context.Context, sum, total core.Money) bool
	Delete    func(ctx context.Context, id int64) bool
}

func (c Confirm) ConfirmImbalance(ctx context.Context, sum, total core.Money) bool {
	return c.Imbalance != nil && c.Imbalance(ctx, sum, total)
}

func (c Confirm) ConfirmDelete(ctx context.Context, id int64) bool {
	return c.Delete != nil && c.Delete(ctx, id)
}

// ImbalancePrompt is the question shown before sending an unbalanced split.
func ImbalancePrompt(sum, total core.Money) string {
	return "The sum of shares (" + sum.String() + ") does not equal the total amount (" +
		total.String() + "). Do you want to continue anyway?"
}
