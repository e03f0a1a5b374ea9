package etl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(t *testing.T, snk *stubSink) http.Handler {
	t.Helper()
	service := NewService("data", stubLoader(fixtureTables()), snk, &stubRunLog{})
	return NewHTTPHandler(service)
}

func TestHandlerIndex(t *testing.T) {
	handler := newTestHandler(t, &stubSink{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, link := range []string{"/trigger-etl", "/etl-results"} {
		if !strings.Contains(body, link) {
			t.Fatalf("expected index to link %s, body: %s", link, body)
		}
	}
}

func TestHandlerTriggerSuccess(t *testing.T) {
	handler := newTestHandler(t, &stubSink{})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/trigger-etl", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", method, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "ETL process completed") {
			t.Fatalf("%s: expected success message, got %s", method, rec.Body.String())
		}
	}
}

func TestHandlerTriggerError(t *testing.T) {
	service := NewService("data", stubLoader(nil), &stubSink{}, nil)
	handler := NewHTTPHandler(service)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trigger-etl", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ETL process failed") {
		t.Fatalf("expected error view, got %s", rec.Body.String())
	}
}

func TestHandlerResults(t *testing.T) {
	snk := &stubSink{}
	handler := newTestHandler(t, snk)

	// Populate the sink first.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trigger-etl", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/etl-results", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive CORS header, got %q", got)
	}

	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("expected JSON array of row objects: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["experiment_count"] != float64(2) {
		t.Fatalf("unexpected experiment_count: %v", rows[0]["experiment_count"])
	}
}

func TestHandlerResultsErrorPath(t *testing.T) {
	handler := newTestHandler(t, &stubSink{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/etl-results", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 before any run, got %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON error payload: %v", err)
	}
	if payload["status"] != "error" {
		t.Fatalf("expected tagged error payload, got %v", payload)
	}
}

func TestHandlerRuns(t *testing.T) {
	handler := newTestHandler(t, &stubSink{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trigger-etl", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/etl-runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var runs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("expected JSON array of runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0]["status"] != "success" {
		t.Fatalf("expected success run, got %v", runs[0])
	}
}

func TestHandlerUnknownPath(t *testing.T) {
	handler := newTestHandler(t, &stubSink{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
