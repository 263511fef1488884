package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mediavault/mediavault/internal/config"
	"github.com/mediavault/mediavault/internal/store"
)

// ErrNotConfigured is returned by NewPublisher when no broker URL is set.
var ErrNotConfigured = errors.New("amqp publisher not configured")

const publishTimeout = 5 * time.Second

// Publisher sends activity envelopes to a durable topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	exchange string
	now      func() time.Time
	logger   *slog.Logger
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(log *slog.Logger, cfg config.AMQPConfig) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Publisher{
		conn:     conn,
		exchange: cfg.Exchange,
		now:      time.Now,
		logger:   log.With(slog.String("service", "events")),
	}, nil
}

// Publish sends one activity entry and waits for the broker confirm.
func (p *Publisher) Publish(ctx context.Context, a store.Activity) error {
	env := NewActivityEnvelope(a, p.now())
	body, err := Marshal(env)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("amqp confirm mode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, env.Meta.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.Time,
		Type:         env.Meta.Type,
		AppId:        Producer,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("amqp confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("amqp publish %s nacked", env.Meta.ID)
	}
	p.logger.Debug("published", slog.String("key", env.Meta.Type), slog.String("exchange", p.exchange))
	return nil
}

// Close closes the broker connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Marshal encodes an envelope, assigning an id when it has none.
func Marshal(env Envelope) ([]byte, error) {
	if env.Meta.ID == "" {
		env.Meta.ID = uuid.NewString()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// Noop discards every activity.
type Noop struct{}

func (Noop) Publish(context.Context, store.Activity) error { return nil }
