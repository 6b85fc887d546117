package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const maxDialDelay = 60 * time.Second

type Config struct {
	URL          string        `split_words:"true" required:"true"`
	Exchange     string        `split_words:"true" default:"concierge"`
	RoutingKey   string        `split_words:"true" default:"appointment.booked"`
	Producer     string        `split_words:"true" default:"chative-concierge"`
	DialAttempts int           `split_words:"true" default:"5"`
	DialDelay    time.Duration `split_words:"true" default:"1s"`
}

// Channel is the part of *amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// ChannelOpener returns a fresh channel per publish; amqp channels are not
// safe for concurrent use.
type ChannelOpener func() (Channel, error)

type Publisher struct {
	open       ChannelOpener
	closer     func() error
	exchange   string
	routingKey string
	producer   string
	now        func() time.Time
	newID      func() string
}

type Option func(*Publisher)

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(p *Publisher) {
		if newID != nil {
			p.newID = newID
		}
	}
}

func WithProducer(producer string) Option {
	return func(p *Publisher) {
		p.producer = strings.TrimSpace(producer)
	}
}

func NewPublisher(open ChannelOpener, exchange, routingKey string, opts ...Option) (*Publisher, error) {
	if open == nil {
		return nil, errors.New("channel opener is required")
	}
	if strings.TrimSpace(exchange) == "" || strings.TrimSpace(routingKey) == "" {
		return nil, errors.New("exchange and routing key are required")
	}
	p := &Publisher{
		open:       open,
		exchange:   exchange,
		routingKey: routingKey,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Dial connects with exponential backoff, declares the topic exchange, and
// returns a publisher that owns the connection.
func Dial(ctx context.Context, cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := dialWithRetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
	}

	p, err := NewPublisher(func() (Channel, error) {
		return conn.Channel()
	}, cfg.Exchange, cfg.RoutingKey, WithProducer(cfg.Producer))
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.closer = conn.Close
	return p, nil
}

func dialWithRetry(ctx context.Context, cfg Config) (*amqp091.Connection, error) {
	attempts := max(cfg.DialAttempts, 1)
	delay := cfg.DialDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp091.Dial(cfg.URL)
		if err == nil {
			if i > 1 {
				log.Info().Int("attempt", i).Msg("amqp connected")
			}
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		log.Warn().Err(err).Int("attempt", i).Dur("sleep", delay).Msg("amqp dial failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxDialDelay)
	}
	return nil, fmt.Errorf("connect to amqp after %d attempts: %w", attempts, lastErr)
}

// Publish sends env as a persistent JSON message under key.
func (p *Publisher) Publish(ctx context.Context, key string, env Envelope) error {
	if env.Meta.ID == "" {
		env.Meta.ID = p.newID()
	}
	if env.Meta.CorrelationID == "" {
		env.Meta.CorrelationID = p.newID()
	}
	if env.Meta.Time.IsZero() {
		env.Meta.Time = p.now().UTC()
	}
	if env.Meta.Producer == "" {
		env.Meta.Producer = p.producer
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", env.Meta.Type, err)
	}

	log.Debug().
		Str("exchange", p.exchange).
		Str("key", key).
		Str("event_id", env.Meta.ID).
		Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
