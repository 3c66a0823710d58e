package bot

import (
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/session"
	"ctchen222/tictactoe-minimax/pkg/proto"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// AutoConnection simulates a websocket connection that plays the human seat
// with the Calculator. It implements the player.Connection interface.
type AutoConnection struct {
	playerID   string
	calculator Calculator
	delay      time.Duration
	moveChan   chan []byte
	closed     chan struct{}
	finished   chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once
}

// NewAutoConnection creates a connection that answers every human turn after delay.
func NewAutoConnection(playerID string, delay time.Duration) *AutoConnection {
	return &AutoConnection{
		playerID: playerID,
		delay:    delay,
		moveChan: make(chan []byte, 1),
		closed:   make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// WriteMessage is called by the session to send game state to the player.
// It never blocks: a move still waiting to be read is kept and the new one dropped.
func (ac *AutoConnection) WriteMessage(messageType int, data []byte) error {
	if messageType != player.TextMessage {
		return nil
	}

	var msg proto.ServerToClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	if msg.Type != "update" || msg.Board == nil {
		return nil
	}

	if msg.Outcome != nil && msg.Outcome.IsTerminal() {
		ac.finishOnce.Do(func() { close(ac.finished) })
		return nil
	}
	if msg.Phase != string(session.PhaseAwaitingHuman) {
		return nil
	}

	index, err := ac.calculator.CalculateNextMove(*msg.Board, msg.Next)
	if err != nil {
		slog.Warn("Autoplayer found no move", "player.id", ac.playerID, "error", err)
		return nil
	}
	move, err := json.Marshal(proto.ClientToServerMessage{Type: "move", Index: &index})
	if err != nil {
		return err
	}

	select {
	case ac.moveChan <- move:
	default:
	}
	return nil
}

// ReadMessage is called by the session to get the player's next move.
func (ac *AutoConnection) ReadMessage() (int, []byte, error) {
	select {
	case move := <-ac.moveChan:
		select {
		case <-time.After(ac.delay):
		case <-ac.closed:
			return 0, nil, io.EOF
		}
		return player.TextMessage, move, nil
	case <-ac.closed:
		return 0, nil, io.EOF
	}
}

// Close stops the autoplayer.
func (ac *AutoConnection) Close() error {
	ac.closeOnce.Do(func() { close(ac.closed) })
	return nil
}

// Finished is closed once the autoplayer has seen a finished game.
func (ac *AutoConnection) Finished() <-chan struct{} {
	return ac.finished
}
