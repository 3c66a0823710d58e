package models

import (
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/session"
	"time"
)

// CreateGameRequest defines the body of a create game request. An empty body starts a single-player game.
type CreateGameRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=single multi"`
}

// MoveRequest defines the body of a move request.
type MoveRequest struct {
	Index *int `json:"index" binding:"required,min=0,max=8"`
}

// ResetRequest defines the body of a reset request. An empty mode keeps the current one.
type ResetRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=single multi"`
}

// GameState is the public view of a session.
type GameState struct {
	SessionID  string          `json:"sessionId"`
	Mode       string          `json:"mode"`
	Board      game.Board      `json:"board"`
	Next       game.PlayerMark `json:"next"`
	Phase      string          `json:"phase"`
	Status     string          `json:"status"`
	Winner     game.PlayerMark `json:"winner,omitempty"`
	Generation uint64          `json:"generation"`
	Version    uint64          `json:"version"`
	History    []int           `json:"history"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewGameState converts a session snapshot.
func NewGameState(snap session.Snapshot) *GameState {
	history := snap.History
	if history == nil {
		history = []int{}
	}
	return &GameState{
		SessionID:  snap.ID,
		Mode:       string(snap.Mode),
		Board:      snap.Board,
		Next:       snap.Next,
		Phase:      string(snap.Phase),
		Status:     string(snap.Outcome.Status),
		Winner:     snap.Outcome.Winner,
		Generation: snap.Generation,
		Version:    snap.Version,
		History:    history,
		UpdatedAt:  snap.UpdatedAt,
	}
}

// ModeStats summarises finished games of one mode.
type ModeStats struct {
	Games int64 `json:"games"`
	XWins int64 `json:"xWins"`
	OWins int64 `json:"oWins"`
	Draws int64 `json:"draws"`
}

// StatsResponse summarises finished games, overall or for one user.
type StatsResponse struct {
	Owner string               `json:"owner,omitempty"`
	Games int64                `json:"games"`
	Modes map[string]ModeStats `json:"modes"`
}
