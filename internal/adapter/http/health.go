package http

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by the database store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity is satisfied by the message queue.
type Connectivity interface {
	IsConnected() bool
}

// StateReporter is satisfied by the event circuit breaker.
type StateReporter interface {
	State() string
}

// Health reports dependency status. Queue and Breaker are nil when events
// are disabled.
type Health struct {
	DB      Pinger
	Queue   Connectivity
	Breaker StateReporter
}

type healthStatus struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	NATS     string `json:"nats"`
	Events   string `json:"events,omitempty"`
}

// ServeHTTP answers 200 when Postgres is reachable and 503 otherwise. NATS
// trouble only degrades the status; licensing keeps working without events.
func (hc *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	st := healthStatus{Status: "ok", Postgres: "ok", NATS: "disabled"}
	code := http.StatusOK

	if err := hc.DB.Ping(ctx); err != nil {
		st.Status, st.Postgres = "unavailable", "error"
		code = http.StatusServiceUnavailable
	}
	if hc.Queue != nil {
		st.NATS = "ok"
		if !hc.Queue.IsConnected() {
			st.NATS = "disconnected"
			if code == http.StatusOK {
				st.Status = "degraded"
			}
		}
	}
	if hc.Breaker != nil {
		st.Events = hc.Breaker.State()
	}
	writeJSON(w, code, st)
}
