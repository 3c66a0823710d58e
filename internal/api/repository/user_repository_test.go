package repository

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/api/models"
	"ctchen222/tictactoe-minimax/internal/db"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitializeDB(ctx, conn))
	repo := NewUserRepository(conn)

	missing, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, missing)

	user := &models.User{Username: "alice"}
	require.NoError(t, repo.CreateUser(ctx, user, "secret123"))
	assert.NotZero(t, user.ID)

	got, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("secret123")))

	err = repo.CreateUser(ctx, &models.User{Username: "alice"}, "another1")
	assert.Error(t, err)
}
