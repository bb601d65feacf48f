package http

import (
	"net/http"

	"condivise/internal/api"
	"condivise/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, r, log.OpCreate, errUnsupportedMedia)
		return
	}
	body, err := decodeExpense(w, r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	rec, err := body.Record()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	stored, err := s.svc.CreateExpense(r.Context(), rec)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	resp := api.OK()
	resp.ID = stored.ID
	e := api.FromRecord(stored)
	resp.Expense = &e
	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateExpense replaces the record named in the path; an id in the
// body is ignored.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	body, err := decodeExpense(w, r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	body.ID = id
	rec, err := body.Record()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	stored, err := s.svc.UpdateExpense(r.Context(), rec)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	resp := api.OK()
	e := api.FromRecord(stored)
	resp.Expense = &e
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OK())
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.svc.Ledger(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	resp := api.OK()
	resp.Expenses = make([]api.Expense, 0, len(ledger.Records))
	for _, rec := range ledger.Records {
		resp.Expenses = append(resp.Expenses, api.FromRecord(rec))
	}
	sum := api.FromSummary(ledger.Summary)
	resp.Summary = &sum
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, api.Fail("Not found"))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, api.Fail("Method not allowed"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, api.Fail("Rate limit exceeded. Please try again later."))
}
