package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/transition"
)

func fastSlackTiming() SlackOption {
	return WithSlackTiming(time.Millisecond, 10, time.Millisecond, 5*time.Millisecond, 50*time.Millisecond)
}

func TestNewSlackNotifier_EmptyURLReturnsNoop(t *testing.T) {
	notifier := NewSlackNotifier(zerolog.Nop(), "")
	if _, ok := notifier.(*NoopNotifier); !ok {
		t.Fatalf("expected noop notifier, got %T", notifier)
	}
}

func TestSlackNotifier_PostsMessage(t *testing.T) {
	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL, fastSlackTiming())
	transitions := []transition.ServiceTransition{
		{
			Name:           "db",
			PreviousStatus: health.StatusHealthy,
			CurrentStatus:  health.StatusDegraded,
			Reasons:        []string{"error rate 0.15"},
			ErrorRate:      0.15,
		},
	}

	if err := notifier.Notify(context.Background(), transitions); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}

	var message map[string]any
	if err := json.Unmarshal(<-bodies, &message); err != nil {
		t.Fatalf("payload not valid json: %v", err)
	}
	if message["text"] == "" {
		t.Fatalf("expected summary text in message")
	}
	if _, ok := message["blocks"]; !ok {
		t.Fatalf("expected blocks in message")
	}
}

func TestSlackNotifier_EmptyTransitionsSkipsPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected post for empty transitions")
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL, fastSlackTiming())
	if err := notifier.Notify(context.Background(), nil); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}
}

func TestBuildSlackMessages_ChunksLargeBatches(t *testing.T) {
	transitions := make([]transition.ServiceTransition, slackMaxTransitions+1)
	for i := range transitions {
		transitions[i] = transition.ServiceTransition{
			Name:          string(rune('a' + i%26)),
			CurrentStatus: health.StatusDegraded,
		}
	}

	messages := buildSlackMessages(transitions)
	if len(messages) != 2 {
		t.Fatalf("expected 2 chunked messages, got %d", len(messages))
	}
}
