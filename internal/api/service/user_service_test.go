package service

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/api/models"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	users map[string]*models.User
}

func (m *memoryUsers) CreateUser(_ context.Context, user *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	user.ID = int64(len(m.users) + 1)
	user.PasswordHash = string(hash)
	m.users[user.Username] = user
	return nil
}

func (m *memoryUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return m.users[username], nil
}

func TestUserServiceLoginAndParseToken(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(&memoryUsers{users: map[string]*models.User{}}, []byte("secret"))

	require.NoError(t, svc.Register(ctx, &models.RegisterRequest{Username: "alice", Password: "secret123"}))
	require.ErrorIs(t, svc.Register(ctx, &models.RegisterRequest{Username: "alice", Password: "secret123"}), ErrUsernameTaken)

	_, err := svc.Login(ctx, &models.LoginRequest{Username: "bob", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, &models.LoginRequest{Username: "alice", Password: "nope"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Login(ctx, &models.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "1", claims.Subject)

	other := NewUserService(&memoryUsers{users: map[string]*models.User{}}, []byte("other"))
	_, err = other.ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewUserService(&memoryUsers{users: map[string]*models.User{}}, []byte("secret")).(*userService)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(signed)
	require.ErrorIs(t, err, ErrInvalidToken)

	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{})
	signed, err = anonymous.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(signed)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestGuestLogin(t *testing.T) {
	svc := NewUserService(&memoryUsers{users: map[string]*models.User{}}, []byte("secret"))
	a, err := svc.GuestLogin(context.Background())
	require.NoError(t, err)
	b, err := svc.GuestLogin(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
