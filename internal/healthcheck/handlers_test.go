package healthcheck

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var payload statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthHandlerHealthy(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordCycle(150*time.Millisecond, 4)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	HealthHandler(tracker, 5*time.Second)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	payload := decodeStatus(t, rec)
	if payload.Status != "ok" {
		t.Fatalf("expected status ok, got %q", payload.Status)
	}
	if payload.LastCycleTime == nil {
		t.Fatalf("expected last cycle time to be set")
	}
	if payload.ServicesEvaluated != 4 {
		t.Fatalf("expected services evaluated 4, got %d", payload.ServicesEvaluated)
	}
	if payload.CycleDurationMS != 150 {
		t.Fatalf("expected duration 150ms, got %d", payload.CycleDurationMS)
	}
}

func TestHealthHandlerUnhealthyWhenStale(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordCycle(10*time.Millisecond, 1)
	tracker.lastCycle = time.Now().Add(-10 * time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	HealthHandler(tracker, 3*time.Second)(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if payload := decodeStatus(t, rec); payload.Status != "stale" {
		t.Fatalf("expected status stale, got %q", payload.Status)
	}
}

func TestReadyHandler(t *testing.T) {
	tracker := NewTracker()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	handler := ReadyHandler(tracker)
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first cycle, got %d", rec.Code)
	}
	if payload := decodeStatus(t, rec); payload.Status != "starting" {
		t.Fatalf("expected status starting, got %q", payload.Status)
	}

	tracker.RecordCycle(5*time.Millisecond, 1)
	rec = httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after first cycle, got %d", rec.Code)
	}
	if payload := decodeStatus(t, rec); payload.Status != "ready" {
		t.Fatalf("expected status ready, got %q", payload.Status)
	}
}

func TestHandlersTolerateNilTracker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	HealthHandler(nil, 5*time.Second)(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for nil tracker, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ReadyHandler(nil)(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for nil tracker, got %d", rec.Code)
	}
}
