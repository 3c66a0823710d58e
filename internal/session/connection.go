package session

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/validator"
	"ctchen222/tictactoe-minimax/pkg/proto"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attach adds a viewer and sends it the current state.
func (s *Session) Attach(ctx context.Context, p *player.Player) error {
	return s.do(ctx, func() {
		p.Status = player.StatusConnected
		p.LastSeen = time.Now()
		s.viewers[p.ID] = p

		assignment, _ := json.Marshal(proto.PlayerAssignmentMessage{
			Type:      "assignment",
			PlayerID:  p.ID,
			SessionID: s.ID,
			Mode:      string(s.mode),
		})
		if err := p.Send(assignment); err != nil {
			slog.ErrorContext(ctx, "Error sending assignment to player", "player.id", p.ID, "error", err)
		}
		s.sendState(ctx, p, nil)
	})
}

// Detach removes a viewer. The game itself keeps running.
func (s *Session) Detach(ctx context.Context, playerID string) error {
	return s.do(ctx, func() {
		if p, ok := s.viewers[playerID]; ok {
			p.Status = player.StatusDisconnected
			p.LastSeen = time.Now()
			delete(s.viewers, playerID)
		}
	})
}

// ViewerCount returns the number of attached viewers.
func (s *Session) ViewerCount(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func() { n = len(s.viewers) })
	return n, err
}

// HandleMessage decodes a websocket message from p and dispatches it.
func (s *Session) HandleMessage(p *player.Player, rawMessage []byte) {
	ctx, span := tracer.Start(context.Background(), "session.HandleMessage", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("session.id", s.ID),
	))
	defer span.End()

	var message proto.ClientToServerMessage
	if err := json.Unmarshal(rawMessage, &message); err != nil {
		slog.ErrorContext(ctx, "error unmarshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error unmarshalling message")
		s.sendError(ctx, p, "malformed message")
		return
	}

	if err := validator.GetValidator().Struct(message); err != nil {
		slog.WarnContext(ctx, "invalid message from player", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		s.sendError(ctx, p, "invalid message")
		return
	}

	span.SetAttributes(attribute.String("message.type", message.Type))

	var err error
	switch message.Type {
	case "move":
		_, err = s.Move(ctx, *message.Index)
	case "reset":
		_, err = s.Reset(ctx, Mode(message.Mode))
	case "sync":
		err = s.do(ctx, func() { s.sendState(ctx, p, nil) })
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message rejected")
		s.sendError(ctx, p, err.Error())
	}
}

// ReadPump pumps messages from the connection into the session until it fails,
// then reports the departure on unregister.
func (s *Session) ReadPump(p *player.Player, unregister chan<- *types.Departure) {
	ctx, span := tracer.Start(context.Background(), "session.ReadPump", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("session.id", s.ID),
	))
	defer span.End()

	defer func() {
		p.Conn.Close()
		if err := s.Detach(ctx, p.ID); err != nil && !errors.Is(err, ErrSessionClosed) {
			slog.WarnContext(ctx, "failed to detach player", "player.id", p.ID, "error", err)
		}
		unregister <- &types.Departure{Player: p, SessionID: s.ID}
	}()

	for {
		_, msg, err := p.Conn.ReadMessage()
		if err != nil {
			slog.WarnContext(ctx, "Player connection error", "player.id", p.ID, "session.id", s.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Player connection error")
			return
		}
		s.HandleMessage(p, msg)
	}
}

// broadcast sends the current state to every connected viewer. Must run on the loop.
func (s *Session) broadcast(ctx context.Context, lastMove *int) {
	for _, p := range s.viewers {
		if p.Status == player.StatusConnected {
			s.sendState(ctx, p, lastMove)
		}
	}
}

func (s *Session) sendState(ctx context.Context, p *player.Player, lastMove *int) {
	snap := s.snapshot()
	msg := &proto.ServerToClientMessage{
		Type:       "update",
		SessionID:  snap.ID,
		Mode:       string(snap.Mode),
		Board:      &snap.Board,
		Next:       snap.Next,
		Phase:      string(snap.Phase),
		Outcome:    &snap.Outcome,
		Generation: snap.Generation,
		LastMove:   lastMove,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		return
	}
	if err := p.Send(data); err != nil {
		slog.ErrorContext(ctx, "error writing message to player", "player.id", p.ID, "error", err)
	}
}

func (s *Session) sendError(ctx context.Context, p *player.Player, reason string) {
	data, _ := json.Marshal(&proto.ServerToClientMessage{Type: "error", Reason: reason, SessionID: s.ID})
	if err := p.Send(data); err != nil {
		slog.ErrorContext(ctx, "error writing message to player", "player.id", p.ID, "error", err)
	}
}
