package repository

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/db"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) ResultRepository {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitializeDB(ctx, conn))
	return NewResultRepository(conn)
}

func TestResultRepositoryRecordIsIdempotent(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	result := &GameResult{
		SessionID: "s-1",
		Mode:      "single",
		Outcome:   "win",
		Winner:    "O",
		Moves:     MoveList{0, 4, 1, 2, 3, 6},
	}
	require.NoError(t, repo.Record(ctx, result))
	assert.NotZero(t, result.ID)

	dup := *result
	dup.ID = 0
	require.NoError(t, repo.Record(ctx, &dup))
	assert.Zero(t, dup.ID)

	results, err := repo.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, MoveList{0, 4, 1, 2, 3, 6}, results[0].Moves)
	assert.Equal(t, "O", results[0].Winner)
	assert.False(t, results[0].FinishedAt.IsZero())
}

func TestResultRepositoryStats(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	records := []GameResult{
		{SessionID: "a", Generation: 0, Mode: "single", Owner: "alice", Outcome: "win", Winner: "O"},
		{SessionID: "a", Generation: 1, Mode: "single", Owner: "alice", Outcome: "draw"},
		{SessionID: "a", Generation: 2, Mode: "single", Owner: "alice", Outcome: "draw"},
		{SessionID: "b", Generation: 0, Mode: "multi", Owner: "bob", Outcome: "win", Winner: "X"},
		{SessionID: "c", Generation: 0, Mode: "multi", Outcome: "win", Winner: "O"},
	}
	for i := range records {
		records[i].FinishedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Record(ctx, &records[i]))
	}

	rows, err := repo.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []StatRow{
		{Mode: "multi", Outcome: "win", Winner: "O", Games: 1},
		{Mode: "multi", Outcome: "win", Winner: "X", Games: 1},
		{Mode: "single", Outcome: "draw", Winner: "", Games: 2},
		{Mode: "single", Outcome: "win", Winner: "O", Games: 1},
	}, rows)

	rows, err = repo.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []StatRow{
		{Mode: "single", Outcome: "draw", Winner: "", Games: 2},
		{Mode: "single", Outcome: "win", Winner: "O", Games: 1},
	}, rows)

	recent, err := repo.ListRecent(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(2), recent[0].Generation)
	assert.Equal(t, uint64(1), recent[1].Generation)

	none, err := repo.ListRecent(ctx, "carol", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestMoveListScan(t *testing.T) {
	var m MoveList
	require.NoError(t, m.Scan([]byte("[4,0]")))
	assert.Equal(t, MoveList{4, 0}, m)
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
	require.Error(t, m.Scan(42))

	v, err := MoveList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
