package entry

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condivise/internal/core"
	"condivise/internal/gateway"
	apphttp "condivise/internal/http"
	"condivise/internal/prefs"
	"condivise/internal/services"
	"condivise/internal/storage/memory"
)

type harness struct {
	remote *gateway.Client
	store  *prefs.Store
	svc    *services.ExpenseService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := services.NewExpenseService(memory.New())
	srv := apphttp.NewServer(":0", svc, apphttp.Options{})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &harness{
		remote: gateway.New(ts.URL, 5*time.Second),
		store:  prefs.NewStore(filepath.Join(t.TempDir(), "prefs.yaml"), nil),
		svc:    svc,
	}
}

// run feeds the lines to a fresh console and returns its output.
func (h *harness) run(t *testing.T, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	c, err := New(h.remote, h.store, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func (h *harness) records(t *testing.T) []core.ExpenseRecord {
	t.Helper()
	l, err := h.svc.Ledger(context.Background())
	require.NoError(t, err)
	return l.Records
}

var addDinner = []string{
	"add",
	"2025-03-14",
	"Dinner",
	"Food",
	"Card",
	"1",
	"100.01",
	"", // split equally, default yes
}

func TestAddExpenseWithEqualSplit(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, append(addDinner, "quit")...)

	assert.Contains(t, out, "Expense 1 saved")
	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "Dinner", recs[0].Description)
	assert.Equal(t, core.Person1, recs[0].PaidBy)
	assert.Equal(t, core.Cents(5001), recs[0].Share1)
	assert.Equal(t, core.Cents(5001), recs[0].Share2)
	assert.Contains(t, out, "1 expenses, total 100.01")
}

func TestEditConfirmsImbalance(t *testing.T) {
	h := newHarness(t)
	h.run(t, addDinner...)

	out := h.run(t,
		"edit 1",
		"", "", "", "", "", "", // keep date through total
		"n",  // custom split
		"70", // person 1
		"20", // person 2
		"y",  // accept the imbalance
		"quit")

	assert.Contains(t, out, "does not equal the total amount (100.01)")
	assert.Contains(t, out, "Expense 1 saved")
	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, core.Cents(7000), recs[0].Share1)
	assert.Equal(t, core.Cents(2000), recs[0].Share2)
	assert.Equal(t, "Dinner", recs[0].Description)
}

func TestDeclinedImbalanceSendsNothing(t *testing.T) {
	h := newHarness(t)
	h.run(t, addDinner...)

	out := h.run(t,
		"edit 1",
		"", "", "", "", "", "",
		"n", "70", "20",
		"n", // decline the imbalance
		"n", // do not edit again
		"quit")

	assert.Contains(t, out, "Adjust the shares")
	assert.Equal(t, core.Cents(5001), h.records(t)[0].Share1)
}

func TestMissingFieldsAreReported(t *testing.T) {
	h := newHarness(t)
	out := h.run(t,
		"add",
		"2025-03-14", "", "", "", "", "10", "",
		"n", // do not edit again
		"quit")

	assert.Contains(t, out, "Please fill in: description, category, payment_mode, paid_by")
	assert.Empty(t, h.records(t))
}

func TestDeleteAsksFirst(t *testing.T) {
	h := newHarness(t)
	h.run(t, addDinner...)

	out := h.run(t, "delete 1", "n", "quit")
	assert.NotContains(t, out, "Expense 1 deleted")
	require.Len(t, h.records(t), 1)

	out = h.run(t, "delete 1", "y", "quit")
	assert.Contains(t, out, "Expense 1 deleted")
	assert.Contains(t, out, "No expenses yet")
	assert.Empty(t, h.records(t))
}

func TestUnknownIDAndCommand(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, "edit 9", "delete x", "frobnicate")

	assert.Contains(t, out, "No expense with id 9")
	assert.Contains(t, out, "Give the expense id")
	assert.Contains(t, out, `Unknown command "frobnicate"`)
}

func TestNamesLabelTheLedger(t *testing.T) {
	h := newHarness(t)
	h.run(t, addDinner...)
	h.run(t, "names", "Alice", "Bob")

	p, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Person1Name)

	out := h.run(t, "list", "quit")
	assert.Contains(t, out, "Paid: Alice 100.01, Bob 0.00")

	// Display names are accepted as payer answers.
	h.run(t, "add", "2025-03-15", "Taxi", "Travel", "Cash", "bob", "12", "")
	recs := h.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, core.Person2, recs[1].PaidBy)
}

func TestStoreDownKeepsDraft(t *testing.T) {
	h := newHarness(t)
	h.remote = gateway.New("http://127.0.0.1:1", time.Second)

	out := h.run(t, append(addDinner, "n", "quit")...)
	assert.Contains(t, out, "Could not load expenses")
	assert.Contains(t, out, "Could not save")
}

func TestStoreDownShowsGenericError(t *testing.T) {
	h := newHarness(t)
	h.remote = gateway.New("http://127.0.0.1:1", time.Second)

	out := h.run(t, append(addDinner, "n", "quit")...)
	assert.Contains(t, out, "Could not load expenses: error connecting to server\n")
	assert.Contains(t, out, "Could not save: error connecting to server\n")
	assert.NotContains(t, out, "dial tcp")
	assert.NotContains(t, out, "127.0.0.1")
}
