package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/health"
)

func TestProbe_HealthyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"response_time_ms":120,"error_rate":0.01,"memory_usage":0.4}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), time.Second)
	metric := client.Probe(context.Background(), Target{Name: "api", URL: server.URL})

	if metric.Status != health.StatusHealthy {
		t.Fatalf("expected healthy, got %s", metric.Status)
	}
	if metric.ResponseTimeMS != 120 {
		t.Fatalf("expected reported response time 120, got %d", metric.ResponseTimeMS)
	}
	if metric.Service != "api" {
		t.Fatalf("expected service api, got %s", metric.Service)
	}
}

func TestProbe_DegradedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"response_time_ms":6000,"error_rate":0.15}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), time.Second)
	metric := client.Probe(context.Background(), Target{Name: "api", URL: server.URL})

	if metric.Status != health.StatusDegraded {
		t.Fatalf("expected degraded, got %s", metric.Status)
	}
}

func TestProbe_ServerErrorIsCritical(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), time.Second)
	metric := client.Probe(context.Background(), Target{Name: "api", URL: server.URL})

	if metric.Status != health.StatusCritical {
		t.Fatalf("expected critical, got %s", metric.Status)
	}
	if metric.ErrorRate != 1.0 {
		t.Fatalf("expected error rate 1.0, got %f", metric.ErrorRate)
	}
	if metric.ResponseTimeMS != 0 {
		t.Fatalf("expected zero response time, got %d", metric.ResponseTimeMS)
	}
}

func TestProbe_NotOKPayloadIsCritical(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_rate":0.7}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), time.Second)
	metric := client.Probe(context.Background(), Target{Name: "db", URL: server.URL})

	if metric.Status != health.StatusCritical {
		t.Fatalf("expected critical, got %s", metric.Status)
	}
	if metric.ErrorRate != 0.7 {
		t.Fatalf("expected reported error rate, got %f", metric.ErrorRate)
	}
}

func TestProbe_TimeoutIsCritical(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), 50*time.Millisecond)
	metric := client.Probe(context.Background(), Target{Name: "queue", URL: server.URL})

	<-started
	if metric.Status != health.StatusCritical {
		t.Fatalf("expected critical, got %s", metric.Status)
	}
	if metric.ErrorRate != 1.0 {
		t.Fatalf("expected error rate 1.0, got %f", metric.ErrorRate)
	}
}

func TestProbe_TargetTimeoutOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), 5*time.Millisecond)
	metric := client.Probe(context.Background(), Target{Name: "api", URL: server.URL, Timeout: time.Second})

	if metric.Status != health.StatusHealthy {
		t.Fatalf("expected healthy with per-target timeout, got %s", metric.Status)
	}
}
