package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condivise/internal/api"
	"condivise/internal/core"
	"condivise/internal/metrics"
)

func sample() core.ExpenseRecord {
	return core.ExpenseRecord{
		Date:        core.NewDate(2025, 4, 2),
		Description: "Train tickets",
		Category:    "Travel",
		PaymentMode: "Card",
		Total:       core.Cents(10000),
		PaidBy:      core.Person1,
		Share1:      core.Cents(5000),
		Share2:      core.Cents(5000),
	}
}

func TestCreateSendsContract(t *testing.T) {
	var gotMethod, gotPath, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"success":true,"expense":{"id":17}}`)
	}))
	defer srv.Close()

	m := metrics.New()
	c := New(srv.URL+"/", time.Second, WithMetrics(m))
	id, err := c.Create(context.Background(), sample())
	require.NoError(t, err)

	assert.Equal(t, int64(17), id)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/add_expense", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, 50.0, gotBody["person1_share"])
	assert.Equal(t, 100.0, gotBody["total_amount"])
	assert.Equal(t, "person1", gotBody["paid_by"])
	assert.NotContains(t, gotBody, "id")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("create", metrics.OutcomeOK)))
}

func TestCreatePrefersTopLevelID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"id":5,"expense":{"id":9}}`)
	}))
	defer srv.Close()

	id, err := New(srv.URL, time.Second).Create(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}

func TestUpdateAndDeletePaths(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	require.NoError(t, c.Update(context.Background(), 12, sample()))
	require.NoError(t, c.Delete(context.Background(), 12))
	assert.Equal(t, []string{"PUT /edit_expense/12", "DELETE /delete_expense/12"}, calls)
}

func TestRemoteErrorIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"error":"Expense not found"}`)
	}))
	defer srv.Close()

	m := metrics.New()
	err := New(srv.URL, time.Second, WithMetrics(m)).Delete(context.Background(), 99)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Expense not found", err.Error())
	assert.Equal(t, http.StatusNotFound, remote.Status)
	assert.False(t, errors.Is(err, ErrConnection))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("delete", metrics.OutcomeRejected)))
}

func TestConnectionErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"html body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		}},
		{"no success field", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"id":3}`)
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := New(srv.URL, time.Second).Create(context.Background(), sample())
			assert.ErrorIs(t, err, ErrConnection)
		})
	}

	t.Run("server down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		err := New(url, time.Second).Update(context.Background(), 1, sample())
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/expenses", r.URL.Path)
		resp := api.OK()
		good := api.FromRecord(sample())
		good.ID = 1
		bad := api.Expense{ID: 2}
		resp.Expenses = []api.Expense{good, bad}
		sum := api.FromSummary(core.Summarize([]core.ExpenseRecord{sample()}))
		resp.Summary = &sum
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	l, err := New(srv.URL, time.Second).List(context.Background())
	require.NoError(t, err)
	require.Len(t, l.Records, 1)
	assert.Equal(t, int64(1), l.Records[0].ID)
	assert.Equal(t, 1, l.Summary.Count)
	assert.Equal(t, core.Cents(10000), l.Summary.Person1Spent.Money())
}
