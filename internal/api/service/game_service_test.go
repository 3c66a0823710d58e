package service

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedResults struct {
	rows      []repository.StatRow
	lastLimit int
}

func (f *fixedResults) Record(context.Context, *repository.GameResult) error { return nil }

func (f *fixedResults) Stats(context.Context, string) ([]repository.StatRow, error) {
	return f.rows, nil
}

func (f *fixedResults) ListRecent(_ context.Context, _ string, limit int) ([]repository.GameResult, error) {
	f.lastLimit = limit
	return []repository.GameResult{}, nil
}

func TestGameServiceStats(t *testing.T) {
	results := &fixedResults{rows: []repository.StatRow{
		{Mode: "multi", Outcome: "win", Winner: "O", Games: 2},
		{Mode: "multi", Outcome: "win", Winner: "X", Games: 3},
		{Mode: "single", Outcome: "draw", Games: 7},
		{Mode: "single", Outcome: "win", Winner: "O", Games: 4},
	}}
	svc := NewGameService(nil, results)

	stats, err := svc.Stats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", stats.Owner)
	assert.Equal(t, int64(16), stats.Games)
	assert.Equal(t, int64(7), stats.Modes["single"].Draws)
	assert.Equal(t, int64(4), stats.Modes["single"].OWins)
	assert.Zero(t, stats.Modes["single"].XWins)
	assert.Equal(t, int64(5), stats.Modes["multi"].Games)
}

func TestGameServiceStatsEmpty(t *testing.T) {
	stats, err := NewGameService(nil, &fixedResults{}).Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, stats.Games)
	assert.Contains(t, stats.Modes, "single")
	assert.Contains(t, stats.Modes, "multi")
}

func TestGameServiceRecentResultsLimit(t *testing.T) {
	results := &fixedResults{}
	svc := NewGameService(nil, results)
	ctx := context.Background()

	_, err := svc.RecentResults(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultResultLimit, results.lastLimit)

	_, err = svc.RecentResults(ctx, "", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, results.lastLimit)

	_, err = svc.RecentResults(ctx, "", MaxResultLimit+1)
	require.ErrorIs(t, err, ErrInvalidLimit)
}
