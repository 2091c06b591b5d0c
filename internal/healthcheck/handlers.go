package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

type statusResponse struct {
	Status string `json:"status"`
	Snapshot
}

// HealthHandler reports monitor liveness: 200 while cycles keep landing
// within twice the poll interval, 503 once the loop goes quiet.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, tracker, tracker.Healthy(time.Now().UTC(), pollInterval), "ok", "stale")
	}
}

// ReadyHandler reports readiness: 200 once the first monitoring cycle has
// completed, 503 before that.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, tracker, tracker.Ready(), "ready", "starting")
	}
}

func respond(w http.ResponseWriter, tracker *Tracker, ok bool, okLabel, failLabel string) {
	payload := statusResponse{
		Status:   failLabel,
		Snapshot: tracker.Snapshot(),
	}
	code := http.StatusServiceUnavailable
	if ok {
		payload.Status = okLabel
		code = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
