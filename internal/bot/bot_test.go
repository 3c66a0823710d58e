package bot

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/session"
	"ctchen222/tictactoe-minimax/pkg/proto"
	"encoding/json"
	"io"
	"testing"
	"time"
)

func update(t *testing.T, board game.Board, next game.PlayerMark, phase session.Phase) []byte {
	t.Helper()
	outcome := game.EvaluateOutcome(board)
	data, err := json.Marshal(proto.ServerToClientMessage{
		Type:    "update",
		Board:   &board,
		Next:    next,
		Phase:   string(phase),
		Outcome: &outcome,
	})
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	return data
}

func TestAutoConnection_AnswersHumanTurn(t *testing.T) {
	ac := NewAutoConnection("auto", 0)
	board := game.Board{game.PlayerX, game.PlayerX, game.None, game.PlayerO, game.PlayerO}

	if err := ac.WriteMessage(player.TextMessage, update(t, board, game.PlayerX, session.PhaseAwaitingHuman)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	_, data, err := ac.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var move proto.ClientToServerMessage
	if err := json.Unmarshal(data, &move); err != nil {
		t.Fatalf("unmarshal move: %v", err)
	}
	if move.Type != "move" || move.Index == nil || *move.Index != 2 {
		t.Errorf("Expected move to 2, got %+v", move)
	}
}

func TestAutoConnection_IgnoresComputerTurnAndOtherFrames(t *testing.T) {
	ac := NewAutoConnection("auto", 0)
	board := game.Board{game.PlayerX}

	if err := ac.WriteMessage(player.TextMessage, update(t, board, game.PlayerO, session.PhaseAwaitingComputer)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := ac.WriteMessage(player.PingMessage, nil); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := ac.WriteMessage(player.TextMessage, []byte(`{"type":"assignment","sessionId":"s"}`)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	select {
	case move := <-ac.moveChan:
		t.Errorf("Expected no move, got %s", move)
	default:
	}
}

func TestAutoConnection_NeverBlocksWriter(t *testing.T) {
	ac := NewAutoConnection("auto", 0)
	data := update(t, game.Board{}, game.PlayerX, session.PhaseAwaitingHuman)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			if err := ac.WriteMessage(player.TextMessage, data); err != nil {
				t.Errorf("WriteMessage failed: %v", err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WriteMessage blocked")
	}
}

func TestAutoConnection_Close(t *testing.T) {
	ac := NewAutoConnection("auto", time.Hour)
	if err := ac.WriteMessage(player.TextMessage, update(t, game.Board{}, game.PlayerX, session.PhaseAwaitingHuman)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	ac.Close()
	ac.Close()

	if _, _, err := ac.ReadMessage(); err != io.EOF {
		t.Errorf("Expected io.EOF after Close, got %v", err)
	}
}

func TestAutoConnection_SelfPlayIsADraw(t *testing.T) {
	s := session.New("self-play", session.ModeSingle, session.Options{
		Calculator:    &Calculator{},
		ComputerDelay: time.Millisecond,
	})
	s.Start(context.Background())
	defer s.Close()

	ac := NewAutoConnection("auto", 0)
	p := player.NewPlayer("auto", ac)
	if err := s.Attach(context.Background(), p); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	departures := make(chan *types.Departure, 1)
	go s.ReadPump(p, departures)

	select {
	case <-ac.Finished():
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the game to finish")
	}

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Outcome.Status != game.Draw {
		t.Errorf("Expected perfect play to draw, got %s after %v", snap.Outcome, snap.History)
	}
	if len(snap.History) != game.CellCount {
		t.Errorf("Expected %d moves, got %d", game.CellCount, len(snap.History))
	}

	ac.Close()
	select {
	case <-departures:
	case <-time.After(time.Second):
		t.Error("ReadPump did not stop after Close")
	}
}
