package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	failures int
	events   []Event
	calls    int
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("bus unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func newTestEvent(t *testing.T) Event {
	t.Helper()
	ev, err := NewEvent(EventTypeGameEnded, uuid.New(), GameEndedPayload{
		White: "ada", Black: "bob", Reason: ReasonDraw,
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return ev
}

func TestDispatcher_PublishesWithRetry(t *testing.T) {
	pub := &recordingPublisher{failures: 2}
	d := NewDispatcher(pub, DispatcherConfig{QueueSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	ev := newTestEvent(t)
	require.True(t, d.Enqueue(ev))

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ev.ID, pub.published()[0].ID)

	cancel()
	require.NoError(t, <-done)

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(0), stats.Failed)
	assert.Equal(t, ev.CreatedAt, stats.LastEvent)
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	pub := &recordingPublisher{failures: 10}
	d := NewDispatcher(pub, DispatcherConfig{QueueSize: 1, MaxRetries: 1, RetryDelay: time.Millisecond})

	d.publish(context.Background(), newTestEvent(t))

	assert.Equal(t, 2, pub.calls)
	assert.Equal(t, uint64(1), d.Stats().Failed)
	assert.Empty(t, pub.published())
}

func TestDispatcher_EnqueueDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingPublisher{}, DispatcherConfig{QueueSize: 1})

	assert.True(t, d.Enqueue(newTestEvent(t)))
	assert.False(t, d.Enqueue(newTestEvent(t)))

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Pending)
}

func TestDispatcher_FlushesQueueOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, DispatcherConfig{QueueSize: 4})

	require.True(t, d.Enqueue(newTestEvent(t)))
	require.True(t, d.Enqueue(newTestEvent(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Len(t, pub.published(), 2)
}

func TestEnvelope(t *testing.T) {
	ev := newTestEvent(t)

	data, err := json.Marshal(Envelope(ev))
	require.NoError(t, err)

	var decoded struct {
		EventID   string          `json:"eventId"`
		EventType string          `json:"eventType"`
		SessionID string          `json:"sessionId"`
		Payload   json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ev.ID.String(), decoded.EventID)
	assert.Equal(t, "GameEnded", decoded.EventType)
	assert.Equal(t, ev.SessionID.String(), decoded.SessionID)
	assert.JSONEq(t, string(ev.Payload), string(decoded.Payload))
}

func TestDispatcher_ConnectedWithoutConnectionAwarePublisher(t *testing.T) {
	assert.True(t, NewDispatcher(LogPublisher{}, DefaultDispatcherConfig()).Connected())
}
