package proto

import "ctchen222/tictactoe-minimax/internal/game"

// ClientToServerMessage represents a message from the client to the server.
type ClientToServerMessage struct {
	Type  string `json:"type" validate:"required,oneof=move reset sync"`
	Index *int   `json:"index,omitempty" validate:"required_if=Type move,omitempty,min=0,max=8"`
	Mode  string `json:"mode,omitempty" validate:"omitempty,oneof=single multi"`
}

// ServerToClientMessage represents a message from the server to the client.
type ServerToClientMessage struct {
	Type       string          `json:"type" validate:"required"`
	Reason     string          `json:"reason,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	Board      *game.Board     `json:"board,omitempty"`
	Next       game.PlayerMark `json:"next,omitempty"`
	Phase      string          `json:"phase,omitempty"`
	Outcome    *game.Outcome   `json:"outcome,omitempty"`
	Generation uint64          `json:"generation,omitempty"`
	LastMove   *int            `json:"lastMove,omitempty"`
}

// PlayerAssignmentMessage tells a device which session and player ID it was given.
type PlayerAssignmentMessage struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId,omitempty"`
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
}
