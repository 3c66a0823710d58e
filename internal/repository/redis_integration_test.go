//go:build integration

package repository

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/db"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/session"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	rdb, err := db.NewRedisClient(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	rdb := newRedis(t)
	repo := NewSessionRepository(rdb, time.Hour)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	snap := session.Snapshot{
		ID:         "s-1",
		Mode:       session.ModeSingle,
		Owner:      "alice",
		Board:      game.Board{game.PlayerX, game.None, game.None, game.None, game.PlayerO},
		Next:       game.PlayerX,
		Phase:      session.PhaseAwaitingHuman,
		Generation: 2,
		Version:    5,
		History:    []int{0, 4},
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, snap))

	got, err := repo.FindByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Board, got.Board)
	assert.Equal(t, snap.History, got.History)
	assert.Equal(t, snap.Generation, got.Generation)
	assert.Equal(t, snap.Version, got.Version)
	assert.Equal(t, snap.Mode, got.Mode)
	assert.Equal(t, "alice", got.Owner)
	assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, game.InProgress, got.Outcome.Status)

	ttl, err := rdb.TTL(ctx, "session:s-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	stale := snap
	stale.Version = 5
	require.ErrorIs(t, repo.Save(ctx, stale), ErrStaleSnapshot)
	stale.Version = 4
	require.ErrorIs(t, repo.Save(ctx, stale), ErrStaleSnapshot)

	newer := snap
	newer.Version = 6
	newer.Board[1] = game.PlayerX
	require.NoError(t, repo.Save(ctx, newer))

	require.NoError(t, repo.Delete(ctx, "s-1"))
	_, err = repo.FindByID(ctx, "s-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPlayerRepository(t *testing.T) {
	rdb := newRedis(t)
	repo := NewPlayerRepository(rdb, time.Hour)
	ctx := context.Background()

	sessionID, status, err := repo.FindForReconnection(ctx, "device-1")
	require.NoError(t, err)
	assert.Empty(t, sessionID)
	assert.Empty(t, status)

	require.NoError(t, repo.AttachSession(ctx, "device-1", "s-9"))
	sessionID, status, err = repo.FindForReconnection(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "s-9", sessionID)
	assert.Equal(t, player.StatusConnected, status)

	require.NoError(t, repo.UpdateConnectionStatus(ctx, "device-1", player.StatusDisconnected))
	_, status, err = repo.FindForReconnection(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, player.StatusDisconnected, status)
}
