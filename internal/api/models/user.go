package models

// User represents a row of the users table.
type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}

// RegisterRequest defines the structure for a user registration request.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20,alphanum"`
	Password string `json:"password" binding:"required,min=6,max=50"`
}

// RegisterResponse confirms a new account.
type RegisterResponse struct {
	Username string `json:"username"`
}

// LoginRequest defines the structure for a user login request.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token used by /ws and the /api/users/me routes.
type LoginResponse struct {
	Token string `json:"token"`
}

// GuestResponse carries the player ID a guest reconnects with.
type GuestResponse struct {
	PlayerID string `json:"player_id"`
}
