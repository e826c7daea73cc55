package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shareit/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *amqp.Channel the forwarder needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	return conn, ch, nil
}

// Forwarder relays bus events to an AMQP exchange under
// "<prefix>.<event type>" routing keys. Delivery happens on the Run
// goroutine so publishing never blocks the booking path.
type Forwarder struct {
	publisher Publisher
	exchange  string
	prefix    string
	retry     RetryPolicy
	queue     chan *Event
	logger    *zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

const forwarderBuffer = 256

var ErrForwarderFull = errors.New("event forwarder queue is full")

func NewForwarder(publisher Publisher, cfg config.EventsConfig, logger *zerolog.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		exchange:  cfg.Exchange,
		prefix:    cfg.RoutingPrefix,
		retry:     NewRetryPolicy(cfg.Retry),
		queue:     make(chan *Event, forwarderBuffer),
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Attach subscribes the forwarder to every booking event on the bus.
func (f *Forwarder) Attach(bus *EventBus) {
	for _, eventType := range BookingEventTypes {
		bus.Subscribe(eventType, f.Enqueue)
	}
}

// Enqueue hands an event to the delivery goroutine without blocking.
func (f *Forwarder) Enqueue(event *Event) error {
	select {
	case f.queue <- event:
		return nil
	default:
		f.logger.Warn().Str("event", event.Type).Msg("dropping event, forwarder queue is full")
		return ErrForwarderFull
	}
}

func (f *Forwarder) RoutingKey(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

// Run delivers queued events until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.queue:
			if err := f.deliver(ctx, event); err != nil {
				f.logger.Error().Err(err).Str("event", event.Type).Msg("failed to forward event")
			}
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, event *Event) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event.Type,
		Timestamp:    event.CreatedAt,
		Body:         event.Payload,
	}
	key := f.RoutingKey(event.Type)

	var err error
	for attempt := 1; attempt <= f.retry.Attempts(); attempt++ {
		if attempt > 1 {
			if sleepErr := f.sleep(ctx, f.retry.Backoff(attempt-1)); sleepErr != nil {
				return sleepErr
			}
		}
		if err = f.publishOnce(ctx, key, msg); err == nil {
			f.logger.Debug().Str("routing_key", key).Msg("event forwarded")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn().Err(err).Int("attempt", attempt).Str("routing_key", key).Msg("publish failed")
	}
	return fmt.Errorf("publish %s after %d attempts: %w", key, f.retry.Attempts(), err)
}

func (f *Forwarder) publishOnce(ctx context.Context, key string, msg amqp.Publishing) error {
	attemptCtx, cancel := f.retry.attemptContext(ctx)
	defer cancel()
	return f.publisher.PublishWithContext(attemptCtx, f.exchange, key, false, false, msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
