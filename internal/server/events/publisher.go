// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userauth/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// UserRegisteredQueue is the durable queue receiving UserRegistered events.
const UserRegisteredQueue = "user.registered"

// UserRegistered is emitted after a user record has been committed.
type UserRegistered struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, ev UserRegistered) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishUserRegistered(context.Context, UserRegistered) error { return nil }

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// openChannel dials the broker and opens a channel. The returned func
// closes both.
var openChannel = func(url string) (channel, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}

// AMQPPublisher opens a short-lived connection per event. Registration
// volume is low and this keeps no broker state between requests.
type AMQPPublisher struct {
	url    string
	logger logging.Logger
}

func NewAMQPPublisher(url string, logger logging.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, logger: logger.With("module", "events")}
}

// New returns an AMQPPublisher, or Noop when url is empty.
func New(url string, logger logging.Logger) Publisher {
	if url == "" {
		return Noop{}
	}
	return NewAMQPPublisher(url, logger)
}

func (p *AMQPPublisher) PublishUserRegistered(ctx context.Context, ev UserRegistered) error {
	msg, err := buildPublishing(ev)
	if err != nil {
		return err
	}

	ch, closeFn, err := openChannel(p.url)
	if err != nil {
		p.logger.Error(ctx, "rabbitmq unavailable", "error", err)
		return err
	}
	defer closeFn()

	if _, err := ch.QueueDeclare(UserRegisteredQueue, true, false, false, false, nil); err != nil {
		p.logger.Error(ctx, "queue declare failed", "queue", UserRegisteredQueue, "error", err)
		return fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", UserRegisteredQueue, false, false, msg); err != nil {
		p.logger.Error(ctx, "publish failed", "queue", UserRegisteredQueue, "error", err)
		return fmt.Errorf("publish: %w", err)
	}

	p.logger.Debug(ctx, "event published", "queue", UserRegisteredQueue, "user_id", ev.UserID)
	return nil
}

func buildPublishing(ev UserRegistered) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt.UTC(),
		Body:         body,
	}, nil
}
