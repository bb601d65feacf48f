package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"condivise/internal/api"
)

const maxBodyBytes = 64 << 10

var errUnsupportedMedia = errors.New("unsupported media type")

// badRequestError marks decode failures that are the client's fault.
// msg is what the client sees.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeExpense reads one JSON expense from the body. Unknown fields are
// ignored.
func decodeExpense(w http.ResponseWriter, r *http.Request) (api.Expense, error) {
	var e api.Expense
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return api.Expense{}, &badRequestError{msg: "No data provided", err: err}
		}
		return api.Expense{}, &badRequestError{msg: "Invalid JSON: " + err.Error(), err: fmt.Errorf("decode expense: %w", err)}
	}
	return e, nil
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequestError{msg: "Invalid expense id", err: fmt.Errorf("parse id %q: %w", mux.Vars(r)["id"], strconv.ErrSyntax)}
	}
	return id, nil
}
