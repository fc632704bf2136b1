// Package broker publishes identity lifecycle events to RabbitMQ.
//
// The publisher is an explicitly constructed, dependency-injected object
// with its own Connect/Close lifecycle; nothing here lives in process-wide
// state.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/core/ports"
)

// Publisher sends identity events to durable queues.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  zerolog.Logger
}

// Connect dials the broker, opens a channel, and declares the identity
// event queues so publishes never race the first consumer.
func Connect(url string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	for _, queue := range []string{ports.QueueIdentityCreated, ports.QueueIdentityVerified} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
	}

	return &Publisher{conn: conn, ch: ch, log: log}, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return p.conn.Close()
}

func (p *Publisher) PublishIdentityCreated(ctx context.Context, ev ports.IdentityCreatedEvent) error {
	return p.publish(ctx, ports.QueueIdentityCreated, ev)
}

func (p *Publisher) PublishIdentityVerified(ctx context.Context, ev ports.IdentityVerifiedEvent) error {
	return p.publish(ctx, ports.QueueIdentityVerified, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}

	p.log.Debug().Str("queue", queue).Msg("event published")
	return nil
}
