package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a game lifecycle event
type EventType string

const (
	EventTypeGameStarted   EventType = "GameStarted"
	EventTypeGameEnded     EventType = "GameEnded"
	EventTypeGameRestarted EventType = "GameRestarted"
)

// Event is one game lifecycle event with its JSON payload
type Event struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Type      EventType
	Payload   []byte
	CreatedAt time.Time
}

// NewEvent marshals payload and stamps a fresh event ID
func NewEvent(eventType EventType, sessionID uuid.UUID, payload any, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      eventType,
		Payload:   data,
		CreatedAt: at,
	}, nil
}

// Publisher delivers events to an external bus
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Sink accepts events without blocking the caller
type Sink interface {
	Enqueue(event Event) bool
}

// Discard is a Sink that drops everything
var Discard Sink = discard{}

type discard struct{}

func (discard) Enqueue(Event) bool { return true }
