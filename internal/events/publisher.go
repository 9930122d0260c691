package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/nhle/mailtriage/internal/model"
)

// RoutingKeyEmailEnriched is published once per stored, enriched email.
const RoutingKeyEmailEnriched = "email.enriched"

// EmailEnriched is the payload of RoutingKeyEmailEnriched.
type EmailEnriched struct {
	EmailID    string          `json:"email_id"`
	AccountID  string          `json:"account_id"`
	UID        string          `json:"uid"`
	Subject    string          `json:"subject"`
	Status     model.Status    `json:"status"`
	Category   *model.Category `json:"category,omitempty"`
	Priority   int             `json:"priority"`
	NeedsReply bool            `json:"needs_reply"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEmailEnriched builds the event for a stored email.
func NewEmailEnriched(e model.EnrichedEmail) EmailEnriched {
	return EmailEnriched{
		EmailID:    e.ID,
		AccountID:  e.AccountID,
		UID:        e.UID,
		Subject:    e.Subject,
		Status:     e.Status,
		Category:   e.Category,
		Priority:   e.Priority,
		NeedsReply: e.NeedsReply,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close()
}

// NopPublisher discards events. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

// AMQPPublisher publishes JSON events to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewAMQPPublisher connects to url and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Publish marshals payload as JSON and publishes it persistently.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", routingKey, err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", routingKey, err)
	}
	return nil
}
