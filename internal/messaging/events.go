// Package messaging publishes monitoring-session lifecycle events.
package messaging

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

// Routing keys for session lifecycle events
const (
	SessionStarted       = "session.started"
	SessionArrived       = "session.arrived"
	SessionCancelled     = "session.cancelled"
	SessionRoutingFailed = "session.routing_failed"
)

// SessionEvent is the payload of every lifecycle event
type SessionEvent struct {
	SessionID           string                `json:"session_id"`
	Origin              calculator.Coordinate `json:"origin"`
	Destination         calculator.Coordinate `json:"destination"`
	Provider            string                `json:"provider,omitempty"`
	RemainingETASeconds float64               `json:"remaining_eta_seconds"`
	Error               string                `json:"error,omitempty"`
	OccurredAt          time.Time             `json:"occurred_at"`
}

// Publisher delivers lifecycle events
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event SessionEvent) error
	Close() error
}

// LogPublisher writes events to the log when no broker is configured
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event
func (p *LogPublisher) Publish(_ context.Context, routingKey string, event SessionEvent) error {
	p.logger.Info().
		Str("routing_key", routingKey).
		Str("session_id", event.SessionID).
		Str("provider", event.Provider).
		Float64("remaining_eta_seconds", event.RemainingETASeconds).
		Str("error", event.Error).
		Msg("Session event")
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error { return nil }
