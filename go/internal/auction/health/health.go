package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Connection reports the state of a broker connection.
type Connection interface {
	IsConnected() bool
}

// Round is what the checker reads from the round scheduler.
type Round interface {
	Overrun() time.Duration
	RoundDuration() time.Duration
}

// OverrunFactor is how many round durations a round may run past its deadline
// before the service reports itself unhealthy.
const OverrunFactor = 3

type Status struct {
	Healthy             bool     `json:"healthy"`
	DatabaseConnected   bool     `json:"databaseConnected"`
	NATSConnected       bool     `json:"natsConnected"`
	RoundOverrunSeconds float64  `json:"roundOverrunSeconds"`
	Errors              []string `json:"errors"`
}

// Checker checks the database, the event broker and round liveness. A nil
// database or broker is treated as not configured and is not checked.
type Checker struct {
	db    Pinger
	nats  Connection
	round Round
}

func NewChecker(db Pinger, nats Connection, round Round) *Checker {
	return &Checker{db: db, nats: nats, round: round}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		} else {
			status.DatabaseConnected = true
		}
	}

	if h.nats != nil {
		status.NATSConnected = h.nats.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.round != nil {
		overrun := h.round.Overrun()
		status.RoundOverrunSeconds = overrun.Seconds()
		if limit := OverrunFactor * h.round.RoundDuration(); overrun > limit {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("round overran its deadline by %s", overrun))
		}
	}

	return status
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	if !status.Healthy {
		log.Warn().Strs("errors", status.Errors).Msg("health check failed")
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
