package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type DispatcherConfig struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Dispatcher decouples event producers from the publisher. Enqueue never
// blocks; a single worker drains the queue and publishes with retry.
type Dispatcher struct {
	publisher Publisher
	config    DispatcherConfig
	queue     chan Event

	mu        sync.Mutex
	published uint64
	failed    uint64
	dropped   uint64
	lastEvent time.Time
}

func NewDispatcher(publisher Publisher, config DispatcherConfig) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	return &Dispatcher{
		publisher: publisher,
		config:    config,
		queue:     make(chan Event, config.QueueSize),
	}
}

// Enqueue hands an event to the worker. It reports false when the queue is full.
func (d *Dispatcher) Enqueue(event Event) bool {
	select {
	case d.queue <- event:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("session_id", event.SessionID.String()).
			Msg("event queue full, dropping event")
		return false
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// already queued with a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Int("queue_size", d.config.QueueSize).Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.flush()
			log.Info().Msg("event dispatcher stopped")
			return nil
		case event := <-d.queue:
			d.publish(ctx, event)
		}
	}
}

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.publish(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, event Event) {
	err := d.publishWithRetry(ctx, event)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.failed++
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish event")
		return
	}
	d.published++
	d.lastEvent = event.CreatedAt
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(d.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := d.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		return nil
	}

	return lastErr
}

// DispatcherStats is a point-in-time view of the dispatcher counters
type DispatcherStats struct {
	Published uint64    `json:"published"`
	Failed    uint64    `json:"failed"`
	Dropped   uint64    `json:"dropped"`
	Pending   int       `json:"pending"`
	LastEvent time.Time `json:"last_event"`
}

func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DispatcherStats{
		Published: d.published,
		Failed:    d.failed,
		Dropped:   d.dropped,
		Pending:   len(d.queue),
		LastEvent: d.lastEvent,
	}
}

// Connected reports the publisher's connection state. Publishers without a
// connection are always considered connected.
func (d *Dispatcher) Connected() bool {
	if c, ok := d.publisher.(interface{ IsConnected() bool }); ok {
		return c.IsConnected()
	}
	return true
}

// LogPublisher writes events to the log instead of a bus
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("session_id", event.SessionID.String()).
		RawJSON("payload", event.Payload).
		Msg("game event")
	return nil
}

func (LogPublisher) Close() error { return nil }
