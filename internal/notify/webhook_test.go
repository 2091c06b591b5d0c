package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/transition"
)

func TestWebhookNotifier_NilWhenUnconfigured(t *testing.T) {
	notifier, err := NewWebhookNotifier(zerolog.Nop(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier != nil {
		t.Fatalf("expected nil notifier without webhook URL")
	}
	// A nil notifier is safe to call.
	if err := notifier.Notify(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error from nil notifier: %v", err)
	}
}

func TestWebhookNotifier_PostsDefaultTemplate(t *testing.T) {
	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transitions := []transition.ServiceTransition{
		{
			Name:           "payments",
			PreviousStatus: health.StatusHealthy,
			CurrentStatus:  health.StatusCritical,
			Reasons:        []string{"probe failed"},
		},
	}
	if err := notifier.Notify(context.Background(), transitions); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}

	body := <-bodies
	var decoded struct {
		Transitions []transition.ServiceTransition `json:"transitions"`
		GeneratedAt string                         `json:"generated_at"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("payload not valid json: %v (%s)", err, body)
	}
	if len(decoded.Transitions) != 1 || decoded.Transitions[0].Name != "payments" {
		t.Fatalf("unexpected payload: %s", body)
	}
	if decoded.GeneratedAt == "" {
		t.Fatalf("expected generated_at timestamp")
	}
}

func TestWebhookNotifier_EmptyTransitionsSkipsPost(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := notifier.Notify(context.Background(), nil); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}
	if called {
		t.Fatalf("expected no post for empty transitions")
	}
}

func TestWebhookNotifier_InvalidTemplate(t *testing.T) {
	if _, err := NewWebhookNotifier(zerolog.Nop(), "http://example.invalid", "{{ .Broken"); err == nil {
		t.Fatalf("expected template parse error")
	}
}
