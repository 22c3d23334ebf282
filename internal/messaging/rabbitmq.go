package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AssistanceExchange is the topic exchange session events are published to
const AssistanceExchange = "assistance"

// amqpChannel is the part of *amqp.Channel the publisher uses
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes session events to a topic exchange
type RabbitMQ struct {
	conn    *amqp.Connection
	channel amqpChannel
	logger  zerolog.Logger
}

// NewRabbitMQ connects to uri and declares the assistance exchange
func NewRabbitMQ(uri string, logger zerolog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	rmq, err := newRabbitMQ(ch, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	rmq.conn = conn

	return rmq, nil
}

func newRabbitMQ(ch amqpChannel, logger zerolog.Logger) (*RabbitMQ, error) {
	err := ch.ExchangeDeclare(
		AssistanceExchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", AssistanceExchange, err)
	}

	return &RabbitMQ{channel: ch, logger: logger}, nil
}

// Publish sends the event as persistent JSON under routingKey
func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, event SessionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.logger.Debug().
		Str("routing_key", routingKey).
		Str("session_id", event.SessionID).
		Msg("Publishing session event")

	err = r.channel.PublishWithContext(ctx,
		AssistanceExchange, // exchange
		routingKey,         // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the channel and the connection
func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
