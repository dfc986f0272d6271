// Package messaging broadcasts validated closures to RabbitMQ for downstream
// reporting.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	publishTimeout  = 5 * time.Second
	publishAttempts = 3
)

// Channel is the subset of *amqp.Channel the publisher needs
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Envelope is the message body published for every event
type Envelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	SchoolID   string          `json:"school_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ClosurePublisher is an event handler that forwards ClosureValidated
// events to a topic exchange
type ClosurePublisher struct {
	conn       *amqp.Connection
	channel    Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// Dial connects to the broker, declares the exchange and returns a publisher
func Dial(cfg config.AMQPConfig, logger *zap.Logger) (*ClosurePublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := NewClosurePublisher(ch, cfg.Exchange, cfg.RoutingKey, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewClosurePublisher declares a durable topic exchange on ch
func NewClosurePublisher(ch Channel, exchange, routingKey string, logger *zap.Logger) (*ClosurePublisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &ClosurePublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// EventTypes returns the events this handler forwards
func (p *ClosurePublisher) EventTypes() []string {
	return []string{finance.EventTypeClosureValidated}
}

// Handle publishes evt, retrying transient broker errors a few times
func (p *ClosurePublisher) Handle(ctx context.Context, evt shared.DomainEvent) error {
	validated, ok := evt.(*finance.ClosureValidatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", evt, finance.EventTypeClosureValidated)
	}

	msg, err := p.message(validated)
	if err != nil {
		return err
	}

	publish := func() error {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		err := p.channel.PublishWithContext(pubCtx, p.exchange, p.routingKey, false, false, msg)
		if errors.Is(err, amqp.ErrClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), publishAttempts-1), ctx)
	if err := backoff.Retry(publish, policy); err != nil {
		return fmt.Errorf("publish %s: %w", finance.EventTypeClosureValidated, err)
	}

	p.logger.Info("Published validated closure",
		zap.String("closure_id", validated.ClosureID.String()),
		zap.String("date", validated.Date),
		zap.String("exchange", p.exchange),
		zap.String("routing_key", p.routingKey),
	)
	return nil
}

// Close closes the channel and, when Dial opened it, the connection
func (p *ClosurePublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

func (p *ClosurePublisher) message(evt *finance.ClosureValidatedEvent) (amqp.Publishing, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal payload: %w", err)
	}
	body, err := json.Marshal(Envelope{
		EventID:    evt.EventID().String(),
		Type:       evt.EventType(),
		SchoolID:   evt.SchoolID().String(),
		OccurredAt: evt.OccurredAt().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.EventID().String(),
		Type:         evt.EventType(),
		Timestamp:    evt.OccurredAt(),
		Headers:      amqp.Table{"school_id": evt.SchoolID().String()},
		Body:         body,
	}, nil
}

var _ shared.EventHandler = (*ClosurePublisher)(nil)
