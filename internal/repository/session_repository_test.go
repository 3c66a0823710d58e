package repository

import (
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/session"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	data := map[string]string{
		FieldBoard:      `["X","X","X","O","O","","","",""]`,
		FieldNext:       "",
		FieldMode:       "multi",
		FieldPhase:      "terminal",
		FieldGeneration: "1",
		FieldVersion:    "6",
		FieldHistory:    `[0,3,1,4,2]`,
		FieldUpdatedAt:  "2026-03-01T12:00:00Z",
	}

	snap, err := decodeSnapshot("s-1", data)
	require.NoError(t, err)
	assert.Equal(t, session.ModeMulti, snap.Mode)
	assert.Equal(t, session.PhaseTerminal, snap.Phase)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, uint64(6), snap.Version)
	assert.Equal(t, []int{0, 3, 1, 4, 2}, snap.History)
	assert.Equal(t, game.Outcome{Status: game.Win, Winner: game.PlayerX}, snap.Outcome)
}

func TestDecodeSnapshotErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{name: "board", field: FieldBoard, value: `{`},
		{name: "history", field: FieldHistory, value: `[x]`},
		{name: "version", field: FieldVersion, value: "-1"},
		{name: "generation", field: FieldGeneration, value: "many"},
		{name: "updated at", field: FieldUpdatedAt, value: "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]string{
				FieldBoard: `["","","","","","","","",""]`,
				FieldMode:  "single",
			}
			data[tt.field] = tt.value
			_, err := decodeSnapshot("s-1", data)
			assert.Error(t, err)
		})
	}
}
