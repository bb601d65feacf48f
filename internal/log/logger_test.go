package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newJSONLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: FormatJSON, Component: ComponentApp, Output: buf})
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, slog.LevelDebug).WithComponent(ComponentExpense)
	logger.Info("Expense stored", FieldExpenseID, int64(3))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0][FieldComponent] != ComponentExpense {
		t.Errorf("component = %v", lines[0][FieldComponent])
	}
	if lines[0][FieldExpenseID] != float64(3) {
		t.Errorf("expense_id = %v", lines[0][FieldExpenseID])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, slog.LevelDebug))
	r := httptest.NewRequest(http.MethodGet, "/expenses?x=1", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_1", http.StatusOK, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, "req_2", http.StatusNotFound, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, "req_3", http.StatusInternalServerError, 3, "10.0.0.1")

	lines := decodeLines(t, &buf)
	want := []string{"INFO", "WARN", "ERROR"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, l := range lines {
		if l["level"] != want[i] {
			t.Errorf("line %d level = %v, want %s", i, l["level"], want[i])
		}
	}
	if lines[0][FieldQuery] != "x=1" || lines[0][FieldSuccess] != true {
		t.Errorf("unexpected fields %v", lines[0])
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, slog.LevelInfo))
	sl.LogError(context.Background(), "List failed", errors.New("db gone"), OpList, nil)

	l := decodeLines(t, &buf)[0]
	if l[FieldError] != "db gone" || l[FieldOperation] != OpList {
		t.Errorf("unexpected fields %v", l)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf, slog.LevelInfo)
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	l := decodeLines(t, &buf)[0]
	if l[FieldRequestID] != "req_abc" {
		t.Errorf("request_id = %v", l[FieldRequestID])
	}
}

func TestFromContextFallback(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("component = %q", got)
	}
}
