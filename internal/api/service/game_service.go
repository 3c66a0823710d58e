package service

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/api/models"
	"ctchen222/tictactoe-minimax/internal/repository"
	"ctchen222/tictactoe-minimax/internal/session"
	"errors"
	"fmt"
)

const (
	DefaultResultLimit = 20
	MaxResultLimit     = 100
)

var ErrInvalidLimit = errors.New("invalid limit")

// SessionProvider creates and looks up live sessions.
type SessionProvider interface {
	CreateSession(ctx context.Context, mode session.Mode, owner string) (*session.Session, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)
}

// GameService defines the interface for game-related business logic.
type GameService interface {
	Create(ctx context.Context, mode, owner string) (*models.GameState, error)
	Get(ctx context.Context, id string) (*models.GameState, error)
	Move(ctx context.Context, id string, index int) (*models.GameState, error)
	Reset(ctx context.Context, id, mode string) (*models.GameState, error)
	Stats(ctx context.Context, owner string) (*models.StatsResponse, error)
	RecentResults(ctx context.Context, owner string, limit int) ([]repository.GameResult, error)
}

type gameService struct {
	sessions SessionProvider
	results  repository.ResultRepository
}

// NewGameService creates a new GameService.
func NewGameService(sessions SessionProvider, results repository.ResultRepository) GameService {
	return &gameService{sessions: sessions, results: results}
}

// Create starts a new session. An empty mode means single-player.
func (s *gameService) Create(ctx context.Context, mode, owner string) (*models.GameState, error) {
	if mode == "" {
		mode = string(session.ModeSingle)
	}
	m, err := session.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.CreateSession(ctx, m, owner)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewGameState(snap), nil
}

func (s *gameService) Get(ctx context.Context, id string) (*models.GameState, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewGameState(snap), nil
}

// Move applies a human move. A rejected move still returns the unchanged state.
func (s *gameService) Move(ctx context.Context, id string, index int) (*models.GameState, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Move(ctx, index)
	if errors.Is(err, session.ErrSessionClosed) {
		return nil, err
	}
	return models.NewGameState(snap), err
}

func (s *gameService) Reset(ctx context.Context, id, mode string) (*models.GameState, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Reset(ctx, session.Mode(mode))
	if err != nil {
		return nil, err
	}
	return models.NewGameState(snap), nil
}

// Stats aggregates finished games, for everyone when owner is empty.
func (s *gameService) Stats(ctx context.Context, owner string) (*models.StatsResponse, error) {
	rows, err := s.results.Stats(ctx, owner)
	if err != nil {
		return nil, err
	}

	resp := &models.StatsResponse{Owner: owner, Modes: map[string]models.ModeStats{}}
	for _, mode := range []session.Mode{session.ModeSingle, session.ModeMulti} {
		resp.Modes[string(mode)] = models.ModeStats{}
	}
	for _, row := range rows {
		ms := resp.Modes[row.Mode]
		ms.Games += row.Games
		switch {
		case row.Outcome == "draw":
			ms.Draws += row.Games
		case row.Winner == "X":
			ms.XWins += row.Games
		case row.Winner == "O":
			ms.OWins += row.Games
		}
		resp.Modes[row.Mode] = ms
		resp.Games += row.Games
	}
	return resp, nil
}

func (s *gameService) RecentResults(ctx context.Context, owner string, limit int) ([]repository.GameResult, error) {
	if limit == 0 {
		limit = DefaultResultLimit
	}
	if limit < 0 || limit > MaxResultLimit {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidLimit, MaxResultLimit)
	}
	return s.results.ListRecent(ctx, owner, limit)
}
