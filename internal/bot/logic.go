package bot

import (
	"ctchen222/tictactoe-minimax/internal/game"
	"errors"
	"math"
)

const winScore = 10

// ErrNoAvailableMove is returned when the search is asked to move on a full or finished board.
var ErrNoAvailableMove = errors.New("no available move")

// Calculator implements the session.MoveCalculator interface.
type Calculator struct{}

// CalculateNextMove calls the package-level search to satisfy the interface.
func (c *Calculator) CalculateNextMove(board game.Board, mark game.PlayerMark) (int, error) {
	return FindBestMoveFor(board, mark)
}

// Evaluate scores a board from O's point of view: +10 when O owns a line,
// -10 when X does, 0 otherwise. Draws and unfinished boards both score 0.
func Evaluate(board game.Board) int {
	return evaluateFor(board, game.PlayerO)
}

// Minimax returns the score of board for O with the given side to move.
// maximizing means O places the next mark.
func Minimax(board game.Board, depth int, maximizing bool) int {
	return minimax(board, game.PlayerO, depth, maximizing)
}

// FindBestMove returns the optimal cell for O. Ties go to the lowest index.
func FindBestMove(board game.Board) (int, error) {
	return FindBestMoveFor(board, game.PlayerO)
}

// FindBestMoveFor searches every empty cell for self and keeps the first one
// with the strictly greatest minimax score.
func FindBestMoveFor(board game.Board, self game.PlayerMark) (int, error) {
	if self != game.PlayerX && self != game.PlayerO {
		return -1, errors.New("search needs mark X or O")
	}
	if game.EvaluateOutcome(board).IsTerminal() {
		return -1, ErrNoAvailableMove
	}

	bestScore := math.MinInt
	bestMove := -1
	for i, cell := range board {
		if cell != game.None {
			continue
		}
		child := board
		child[i] = self
		score := minimax(child, self, 0, false)
		if score > bestScore {
			bestScore = score
			bestMove = i
		}
	}

	if bestMove == -1 {
		return -1, ErrNoAvailableMove
	}
	return bestMove, nil
}

func evaluateFor(board game.Board, self game.PlayerMark) int {
	switch board.Winner() {
	case self:
		return winScore
	case game.Opponent(self):
		return -winScore
	}
	return 0
}

// minimax works on copies of board, so a hypothetical mark never outlives its ply.
func minimax(board game.Board, self game.PlayerMark, depth int, maximizing bool) int {
	switch evaluateFor(board, self) {
	case winScore:
		return winScore - depth
	case -winScore:
		return -winScore + depth
	}
	if board.IsFull() {
		return 0
	}

	mark := game.Opponent(self)
	best := math.MaxInt
	if maximizing {
		mark = self
		best = math.MinInt
	}

	for i, cell := range board {
		if cell != game.None {
			continue
		}
		child := board
		child[i] = mark
		score := minimax(child, self, depth+1, !maximizing)
		if maximizing {
			best = max(best, score)
		} else {
			best = min(best, score)
		}
	}
	return best
}
