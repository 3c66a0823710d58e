package hub

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/repository"
	"ctchen222/tictactoe-minimax/internal/session"
	"ctchen222/tictactoe-minimax/pkg/proto"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleRegistration attaches a device to the session it asked for, to the
// session it last played, or to a new one.
func (h *Hub) handleRegistration(req *types.RegistrationRequest) {
	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "hub.handleRegistration", trace.WithAttributes(
		attribute.String("player.id", req.Player.ID),
		attribute.String("session.id", req.SessionID),
	))
	defer span.End()

	s, err := h.resolveSession(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "Could not resolve session for player", "player.id", req.Player.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not resolve session")
		rejectPlayer(ctx, req.Player, err)
		return
	}
	span.SetAttributes(attribute.String("session.id", s.ID))

	if err := s.Attach(ctx, req.Player); err != nil {
		slog.ErrorContext(ctx, "Could not attach player to session", "player.id", req.Player.ID, "session.id", s.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not attach player")
		rejectPlayer(ctx, req.Player, err)
		return
	}

	if h.playerRepo != nil {
		if err := h.playerRepo.AttachSession(ctx, req.Player.ID, s.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to record player session", "player.id", req.Player.ID, "error", err)
			span.RecordError(err)
		}
	}

	slog.InfoContext(ctx, "Player attached to session", "player.id", req.Player.ID, "session.id", s.ID)
	go s.ReadPump(req.Player, h.unregister)
}

func (h *Hub) resolveSession(ctx context.Context, req *types.RegistrationRequest) (*session.Session, error) {
	if req.SessionID != "" {
		return h.GetSession(ctx, req.SessionID)
	}

	if h.playerRepo != nil && req.PlayerID != "" {
		sessionID, _, err := h.playerRepo.FindForReconnection(ctx, req.PlayerID)
		if err != nil {
			slog.WarnContext(ctx, "Could not look up player's last session", "player.id", req.PlayerID, "error", err)
		} else if sessionID != "" {
			s, err := h.GetSession(ctx, sessionID)
			if err == nil {
				slog.InfoContext(ctx, "Resuming player's last session", "player.id", req.PlayerID, "session.id", sessionID)
				return s, nil
			}
			if !errors.Is(err, repository.ErrSessionNotFound) {
				return nil, err
			}
		}
	}

	mode := session.ModeSingle
	if req.Mode != "" {
		m, err := session.ParseMode(req.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	return h.CreateSession(ctx, mode, req.Owner)
}

func (h *Hub) handleDeparture(ctx context.Context, d *types.Departure) {
	ctx, span := tracer.Start(ctx, "hub.handleDeparture", trace.WithAttributes(
		attribute.String("player.id", d.Player.ID),
		attribute.String("session.id", d.SessionID),
	))
	defer span.End()

	if h.playerRepo != nil {
		if err := h.playerRepo.UpdateConnectionStatus(ctx, d.Player.ID, player.StatusDisconnected); err != nil {
			slog.ErrorContext(ctx, "Failed to update player connection status", "player.id", d.Player.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update connection status")
		}
	}
	slog.InfoContext(ctx, "Player disconnected", "player.id", d.Player.ID, "session.id", d.SessionID)
}

func rejectPlayer(ctx context.Context, p *player.Player, cause error) {
	reason := "could not join session"
	if errors.Is(cause, repository.ErrSessionNotFound) {
		reason = "session not found"
	} else if errors.Is(cause, session.ErrInvalidMode) {
		reason = "invalid mode"
	}
	data, _ := json.Marshal(&proto.ServerToClientMessage{Type: "error", Reason: reason})
	if err := p.Send(data); err != nil {
		slog.ErrorContext(ctx, "Error writing message to player", "player.id", p.ID, "error", err)
	}
	if err := p.Conn.Close(); err != nil {
		slog.DebugContext(ctx, "Error closing rejected connection", "player.id", p.ID, "error", err)
	}
}
