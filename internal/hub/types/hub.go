package types

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/player"
)

// RegistrationRequest represents a request to attach a device to a session.
type RegistrationRequest struct {
	Player    *player.Player
	PlayerID  string // Used for reconnection
	SessionID string // Empty to resume the player's last session or start a new one
	Mode      string // "single" or "multi", for new sessions
	Owner     string // Authenticated username, if any
	Ctx       context.Context
}

// Departure reports that a player's connection to a session went away.
type Departure struct {
	Player    *player.Player
	SessionID string
}
