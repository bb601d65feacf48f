// Package gateway is the entry client's connection to the record store. Each
// call is a single request/response exchange with no retry.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"condivise/internal/api"
	"condivise/internal/core"
	"condivise/internal/log"
	"condivise/internal/metrics"
)

// ErrConnection covers every failure where no usable reply came back:
// transport errors, non-JSON bodies and replies without a success field.
var ErrConnection = errors.New("error connecting to server")

// RemoteError is an explicit success:false reply. Message is the server's
// error text, unchanged.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// maxBody bounds how much of a reply is read.
const maxBody = 1 << 20

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentGateway) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a client for the store at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create stores a new record and returns its id. The id is zero if the
// store did not report one.
func (c *Client) Create(ctx context.Context, rec core.ExpenseRecord) (int64, error) {
	rec.ID = 0
	resp, err := c.do(ctx, log.OpCreate, http.MethodPost, api.PathAddExpense, api.FromRecord(rec))
	if err != nil {
		return 0, err
	}
	if resp.ID != 0 {
		return resp.ID, nil
	}
	if resp.Expense != nil {
		return resp.Expense.ID, nil
	}
	return 0, nil
}

func (c *Client) Update(ctx context.Context, id int64, rec core.ExpenseRecord) error {
	rec.ID = id
	_, err := c.do(ctx, log.OpUpdate, http.MethodPut, api.EditPath(id), api.FromRecord(rec))
	return err
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, log.OpDelete, http.MethodDelete, api.DeletePath(id), nil)
	return err
}

// Ledger is the authoritative view fetched after a mutation.
type Ledger struct {
	Records []core.ExpenseRecord
	Summary api.Summary
}

// List fetches every stored record with the summary totals.
func (c *Client) List(ctx context.Context) (Ledger, error) {
	resp, err := c.do(ctx, log.OpList, http.MethodGet, api.PathListExpenses, nil)
	if err != nil {
		return Ledger{}, err
	}
	var l Ledger
	for _, e := range resp.Expenses {
		rec, err := e.Record()
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed ledger row",
				log.FieldExpenseID, e.ID, log.FieldError, err.Error())
			continue
		}
		l.Records = append(l.Records, rec)
	}
	if resp.Summary != nil {
		l.Summary = *resp.Summary
	}
	return l, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (api.Response, error) {
	start := time.Now()
	resp, status, err := c.roundTrip(ctx, method, path, body)
	outcome := metrics.OutcomeOK

	var remote *RemoteError
	switch {
	case err == nil:
	case errors.As(err, &remote):
		outcome = metrics.OutcomeRejected
		c.logger.WarnContext(ctx, "Store rejected request",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldErrorType, log.ErrorTypeRemote,
			log.FieldError, remote.Message)
	default:
		outcome = metrics.OutcomeError
		c.logger.ErrorContext(ctx, "Store request failed",
			log.FieldOperation, op,
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err.Error())
	}
	if c.metrics != nil {
		c.metrics.GatewayRequests.WithLabelValues(op, outcome).Inc()
		c.metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (api.Response, int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return api.Response{}, 0, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return api.Response{}, 0, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return api.Response{}, 0, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer res.Body.Close()

	var out api.Response
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBody)).Decode(&out); err != nil {
		return api.Response{}, res.StatusCode, fmt.Errorf("%w: status %d: invalid reply: %v", ErrConnection, res.StatusCode, err)
	}
	if out.Success == nil {
		return api.Response{}, res.StatusCode, fmt.Errorf("%w: status %d: reply has no success field", ErrConnection, res.StatusCode)
	}
	if !*out.Success {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return out, res.StatusCode, &RemoteError{Status: res.StatusCode, Message: msg}
	}
	return out, res.StatusCode, nil
}
