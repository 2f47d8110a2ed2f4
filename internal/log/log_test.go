package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestJSONLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})

	l.Info("saved", FieldUserID, 7)
	l.Debug("hidden")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0][FieldComponent] != ComponentLedger {
		t.Errorf("component = %v", lines[0][FieldComponent])
	}
	if lines[0][FieldUserID] != float64(7) {
		t.Errorf("user_id = %v", lines[0][FieldUserID])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodGet, "/expenses?skip=1", nil)

	sl.LogHTTPEnd(context.Background(), r, "rid-1", 200, 3, "1.2.3.4")
	sl.LogHTTPEnd(context.Background(), r, "rid-2", 404, 3, "1.2.3.4")
	sl.LogHTTPEnd(context.Background(), r, "rid-3", 500, 3, "1.2.3.4")

	lines := decodeLines(t, &buf)
	want := []string{"INFO", "WARN", "ERROR"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, line := range lines {
		if line["level"] != want[i] {
			t.Errorf("line %d level = %v, want %s", i, line["level"], want[i])
		}
		if line[FieldComponent] != ComponentHTTP {
			t.Errorf("line %d component = %v", i, line[FieldComponent])
		}
	}
	if lines[0][FieldQuery] != "skip=1" || lines[0][FieldRequestID] != "rid-1" {
		t.Errorf("unexpected fields %v", lines[0])
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Component: ComponentHTTP, Output: &buf})

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "abc" {
		t.Fatalf("expected request id on context logger, got %v", lines)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}
}

func TestLogErrorAddsFields(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	sl.LogError(context.Background(), "boom", errors.New("disk full"), OpExport, NewFields().WithUser(3))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0][FieldError] != "disk full" || lines[0][FieldOperation] != OpExport {
		t.Errorf("unexpected fields %v", lines[0])
	}
}
