package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"condivise/internal/api"
	"condivise/internal/log"
	"condivise/internal/services"
	"condivise/internal/storage"
)

// writeJSON encodes resp with the given status.
func writeJSON(w http.ResponseWriter, status int, resp api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeError maps err to a status and a client-facing message. Store
// failures are logged and answered without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Expense request failed", err, op, log.NewFields().WithErrorType(log.ErrorTypeDatabase))
	}
	writeJSON(w, status, api.Fail(msg))
}

func classify(err error) (int, string) {
	var missing *api.MissingFieldsError
	var bad *badRequestError
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, "Missing required fields: " + strings.Join(missing.Fields, ", ")
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "Content-Type must be application/json"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Expense not found"
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case services.IsRejection(err):
		return http.StatusBadRequest, "Invalid data format: " + err.Error()
	default:
		return http.StatusInternalServerError, "Unexpected error"
	}
}
