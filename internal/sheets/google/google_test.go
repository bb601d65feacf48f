package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"condivise/internal/api"
	ports "condivise/internal/sheets"
)

type recorded struct {
	method string
	path   string
	query  string
	body   gsheet.ValueRange
}

// fakeSheets answers the few Values endpoints the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	calls    []recorded
	existing [][]interface{}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, ":append"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Journal!A2:L2"},
		})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.existing})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}
}

func newTestClient(t *testing.T, fake *fakeSheets, sheet string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return newClient(svc, Config{SpreadsheetID: "sheet-id", SheetName: sheet}, nil)
}

func TestNewClientWithoutLogger(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake, "")
	require.NotNil(t, c.logger)
	assert.Equal(t, "Journal", c.sheetName)
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestJournalRange(t *testing.T) {
	c := &Client{sheetName: "Journal"}
	assert.Equal(t, "Journal!A:L", c.journalRange())
	c.sheetName = "Shared Ledger"
	assert.Equal(t, "'Shared Ledger'!A:L", c.journalRange())
	assert.Equal(t, "'Bob''s'", quoteSheet("Bob's"))
}

func TestAppendJournal(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake, "")

	err := c.AppendJournal(context.Background(), ports.JournalEntry{
		OccurredAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		MessageID:  "abc",
		Event:      "expense.deleted",
		Expense:    api.Expense{ID: 41},
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Contains(t, call.path, "/v4/spreadsheets/sheet-id/values/")
	assert.Contains(t, call.path, ":append")
	assert.Contains(t, call.query, "valueInputOption=USER_ENTERED")
	assert.Contains(t, call.query, "insertDataOption=INSERT_ROWS")
	require.Len(t, call.body.Values, 1)
	assert.Equal(t, "2025-02-03T04:05:06Z", call.body.Values[0][0])
	assert.Equal(t, "41", call.body.Values[0][3])
}

func TestEnsureHeader(t *testing.T) {
	t.Run("empty sheet gets a header", func(t *testing.T) {
		fake := &fakeSheets{}
		c := newTestClient(t, fake, "Journal")
		require.NoError(t, c.EnsureHeader(context.Background()))
		require.Len(t, fake.calls, 2)
		assert.Equal(t, http.MethodPut, fake.calls[1].method)
		assert.Equal(t, "Occurred At", fake.calls[1].body.Values[0][0])
	})

	t.Run("existing header is left alone", func(t *testing.T) {
		fake := &fakeSheets{existing: [][]interface{}{{"Occurred At"}}}
		c := newTestClient(t, fake, "Journal")
		require.NoError(t, c.EnsureHeader(context.Background()))
		assert.Len(t, fake.calls, 1)
	})
}
