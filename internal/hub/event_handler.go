package hub

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/events"
	"ctchen222/tictactoe-minimax/internal/repository"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// localPublisher hands events straight to the hub when there is no broker.
type localPublisher struct {
	hub *Hub
}

func (p localPublisher) Publish(ctx context.Context, event events.Event) error {
	p.hub.HandleEvent(ctx, event)
	return nil
}

func (h *Hub) runEventSubscriber(ctx context.Context) {
	slog.InfoContext(ctx, "Event subscriber started", "channel", events.EventsChannel)
	pubsub := h.rdb.Subscribe(ctx, events.EventsChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var event events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			slog.ErrorContext(ctx, "Could not unmarshal global event", "error", err)
			continue
		}
		h.HandleEvent(ctx, event)
	}
	slog.InfoContext(ctx, "Event subscriber stopped", "channel", events.EventsChannel)
}

// HandleEvent reacts to a session event. Finished games are recorded as results.
func (h *Hub) HandleEvent(ctx context.Context, event events.Event) {
	ctx, span := tracer.Start(ctx, "hub.handleEvent", trace.WithAttributes(
		attribute.String("event.channel", events.EventsChannel),
		attribute.String("event.type", event.Type),
	))
	defer span.End()

	switch event.Type {
	case events.TypeGameFinished:
		var payload events.GameFinishedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			slog.ErrorContext(ctx, "Could not unmarshal game_finished payload", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Could not unmarshal game_finished payload")
			return
		}
		h.handleGameFinished(ctx, &payload)

	case events.TypeSessionCreated, events.TypeSessionReset:
		slog.DebugContext(ctx, "Received session event", "event", event.Type, "payload", string(event.Payload))
	}
}

func (h *Hub) handleGameFinished(ctx context.Context, payload *events.GameFinishedPayload) {
	ctx, span := tracer.Start(ctx, "hub.handleGameFinished", trace.WithAttributes(
		attribute.String("session.id", payload.SessionID),
		attribute.Int64("session.generation", int64(payload.Generation)),
		attribute.String("game.outcome", payload.Outcome),
	))
	defer span.End()

	slog.InfoContext(ctx, "Received game_finished event", "session.id", payload.SessionID, "outcome", payload.Outcome, "winner", payload.Winner)
	if h.resultRepo == nil {
		return
	}

	result := &repository.GameResult{
		SessionID:  payload.SessionID,
		Generation: payload.Generation,
		Mode:       payload.Mode,
		Owner:      payload.Owner,
		Outcome:    payload.Outcome,
		Winner:     payload.Winner,
		Moves:      repository.MoveList(payload.Moves),
	}
	if err := h.resultRepo.Record(ctx, result); err != nil {
		slog.ErrorContext(ctx, "Failed to record game result", "session.id", payload.SessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record game result")
	}
}
