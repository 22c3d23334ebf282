// Package telemetry publishes simulated unit positions for live-tracking
// consumers over MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/simulator"
)

// geohashPrecision of 7 characters is a ~150 m cell
const geohashPrecision = 7

// PositionSink receives every snapshot of a session's unit
type PositionSink interface {
	PublishPosition(sessionID string, unit simulator.Unit) error
	Close()
}

// MQTTClient defines the subset of the paho client used here
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// PositionMessage is the payload published per tick
type PositionMessage struct {
	SessionID           string                `json:"session_id"`
	Status              simulator.Status      `json:"status"`
	Position            calculator.Coordinate `json:"position"`
	Geohash             string                `json:"geohash"`
	StepIndex           int                   `json:"step_index"`
	TotalSteps          int                   `json:"total_steps"`
	RemainingETASeconds float64               `json:"remaining_eta_seconds"`
	RemainingDistanceKM float64               `json:"remaining_distance_km"`
	Timestamp           time.Time             `json:"timestamp"`
}

// MQTTSink publishes positions to <prefix>/sessions/<id>/position
type MQTTSink struct {
	client  MQTTClient
	prefix  string
	qos     byte
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMQTTSink connects to broker and returns a sink
func NewMQTTSink(broker, clientID, prefix string, logger zerolog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	return newMQTTSink(mqtt.NewClient(opts), prefix, logger)
}

func newMQTTSink(client MQTTClient, prefix string, logger zerolog.Logger) (*MQTTSink, error) {
	s := &MQTTSink{
		client:  client,
		prefix:  prefix,
		qos:     0,
		timeout: 5 * time.Second,
		logger:  logger,
	}

	token := client.Connect()
	if !token.WaitTimeout(s.timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return s, nil
}

// Topic returns the position topic of a session
func (s *MQTTSink) Topic(sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s/position", s.prefix, sessionID)
}

// PublishPosition publishes the unit's snapshot; arrival is retained so
// late subscribers see the final state
func (s *MQTTSink) PublishPosition(sessionID string, unit simulator.Unit) error {
	msg := PositionMessage{
		SessionID:           sessionID,
		Status:              unit.Status,
		Position:            unit.CurrentPosition,
		Geohash:             calculator.Geohash(unit.CurrentPosition, geohashPrecision),
		StepIndex:           unit.StepIndex,
		TotalSteps:          unit.TotalSteps,
		RemainingETASeconds: unit.RemainingETASeconds,
		RemainingDistanceKM: unit.RemainingDistanceKM,
		Timestamp:           time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	retained := unit.Status == simulator.StatusArrived
	token := s.client.Publish(s.Topic(sessionID), s.qos, retained, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("timed out publishing position for session %s", sessionID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish position: %w", err)
	}

	return nil
}

// Close disconnects from the broker
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
	s.logger.Info().Msg("MQTT telemetry disconnected")
}

// NopSink discards positions
type NopSink struct{}

// PublishPosition does nothing
func (NopSink) PublishPosition(string, simulator.Unit) error { return nil }

// Close does nothing
func (NopSink) Close() {}
