package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMutationsCounter(t *testing.T) {
	m := New()
	m.Mutations.WithLabelValues("create", OutcomeOK).Inc()
	m.Mutations.WithLabelValues("create", OutcomeOK).Inc()
	m.Mutations.WithLabelValues("delete", OutcomeRejected).Inc()

	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("create", OutcomeOK)); got != 2 {
		t.Fatalf("create ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("delete", OutcomeRejected)); got != 1 {
		t.Fatalf("delete rejected = %v, want 1", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.CacheLookups.WithLabelValues("hit").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `condivise_cache_lookups_total{result="hit"} 1`) {
		t.Fatalf("cache counter not exposed:\n%s", body)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.EventsPublished.WithLabelValues(OutcomeOK).Inc()
	if got := testutil.ToFloat64(b.EventsPublished.WithLabelValues(OutcomeOK)); got != 0 {
		t.Fatalf("registries leak between instances: %v", got)
	}
}
