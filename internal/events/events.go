package events

//go:generate mockgen -source=events.go -destination=mocks/mock_events.go -package=mocks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:events"
)

// Event types
const (
	TypeSessionCreated = "session_created"
	TypeGameFinished   = "game_finished"
	TypeSessionReset   = "session_reset"
)

// Event represents a global message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SessionCreatedPayload is the payload for the "session_created" event.
type SessionCreatedPayload struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Owner     string `json:"owner,omitempty"`
}

// GameFinishedPayload is the payload for the "game_finished" event.
type GameFinishedPayload struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Mode       string `json:"mode"`
	Owner      string `json:"owner,omitempty"`
	Outcome    string `json:"outcome"`
	Winner     string `json:"winner,omitempty"`
	Moves      []int  `json:"moves"`
}

// SessionResetPayload is the payload for the "session_reset" event.
type SessionResetPayload struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Mode       string `json:"mode"`
}

// New wraps payload into an Event of the given type.
func New(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: raw}, nil
}

// Publisher sends events to every interested process.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type redisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher publishes events on EventsChannel.
func NewRedisPublisher(rdb *redis.Client) Publisher {
	return &redisPublisher{rdb: rdb}
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, EventsChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
