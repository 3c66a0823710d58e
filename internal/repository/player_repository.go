package repository

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/player"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("repository")

// PlayerRepository tracks which session a device last played and whether it is connected.
type PlayerRepository interface {
	FindForReconnection(ctx context.Context, id string) (sessionID string, status player.PlayerStatus, err error)
	AttachSession(ctx context.Context, id, sessionID string) error
	UpdateConnectionStatus(ctx context.Context, id string, status player.PlayerStatus) error
}

type redisPlayerRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPlayerRepository creates a new Redis-based PlayerRepository.
func NewPlayerRepository(rdb *redis.Client, ttl time.Duration) PlayerRepository {
	return &redisPlayerRepository{
		rdb: rdb,
		ttl: ttl,
	}
}

func playerKey(id string) string {
	return fmt.Sprintf("player:%s", id)
}

// FindForReconnection retrieves the session a player was last attached to.
// Unknown players yield an empty session ID.
func (r *redisPlayerRepository) FindForReconnection(ctx context.Context, id string) (string, player.PlayerStatus, error) {
	ctx, span := tracer.Start(ctx, "PlayerRepository.FindForReconnection")
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, playerKey(id)).Result()
	if err != nil {
		return "", "", err
	}
	return data["session_id"], player.PlayerStatus(data["connection_status"]), nil
}

// AttachSession records that the player is connected to sessionID.
func (r *redisPlayerRepository) AttachSession(ctx context.Context, id, sessionID string) error {
	ctx, span := tracer.Start(ctx, "PlayerRepository.AttachSession")
	defer span.End()

	key := playerKey(id)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, "session_id", sessionID, "connection_status", string(player.StatusConnected))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateConnectionStatus updates only the connection status of a player.
func (r *redisPlayerRepository) UpdateConnectionStatus(ctx context.Context, id string, status player.PlayerStatus) error {
	ctx, span := tracer.Start(ctx, "PlayerRepository.UpdateConnectionStatus")
	defer span.End()

	return r.rdb.HSet(ctx, playerKey(id), "connection_status", string(status)).Err()
}
