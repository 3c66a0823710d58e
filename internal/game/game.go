package game

import (
	"errors"
	"fmt"
)

// PlayerMark represents the mark of a player (X, O) or an empty cell.
type PlayerMark string

// OutcomeStatus is the coarse state of a board: still playing, won or drawn.
type OutcomeStatus string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// Outcome statuses
	InProgress OutcomeStatus = "in_progress"
	Win        OutcomeStatus = "win"
	Draw       OutcomeStatus = "draw"

	// Board boundaries
	BorderMin = 0
	BorderMax = 8
	CellCount = 9
)

// ErrInvalidMove is returned for out-of-range indexes, occupied cells,
// unknown marks and moves on a finished board.
var ErrInvalidMove = errors.New("invalid move")

// WinningLines holds every row, column and diagonal, in the order they are checked.
var WinningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is the 3x3 grid stored row-major: 0-2 top row, 3-5 middle, 6-8 bottom.
type Board [CellCount]PlayerMark

// Outcome is derived from a Board. Winner is only set when Status is Win.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Winner PlayerMark    `json:"winner,omitempty"`
}

// IsTerminal reports whether no further moves are accepted.
func (o Outcome) IsTerminal() bool {
	return o.Status != InProgress
}

func (o Outcome) String() string {
	if o.Status == Win {
		return string(o.Winner) + " wins"
	}
	return string(o.Status)
}

// ApplyMove returns a copy of b with mark placed at index. b itself is never modified.
func ApplyMove(b Board, index int, mark PlayerMark) (Board, error) {
	if mark != PlayerX && mark != PlayerO {
		return b, fmt.Errorf("%w: unknown mark %q", ErrInvalidMove, mark)
	}
	if index < BorderMin || index > BorderMax {
		return b, fmt.Errorf("%w: index %d out of range", ErrInvalidMove, index)
	}
	if b[index] != None {
		return b, fmt.Errorf("%w: cell %d already occupied", ErrInvalidMove, index)
	}
	if EvaluateOutcome(b).IsTerminal() {
		return b, fmt.Errorf("%w: game already finished", ErrInvalidMove)
	}

	next := b
	next[index] = mark
	return next, nil
}

// UndoMove clears the mark at index, reversing a previous ApplyMove.
func UndoMove(b Board, index int) (Board, error) {
	if index < BorderMin || index > BorderMax {
		return b, fmt.Errorf("%w: index %d out of range", ErrInvalidMove, index)
	}
	if b[index] == None {
		return b, fmt.Errorf("%w: cell %d is empty", ErrInvalidMove, index)
	}

	prev := b
	prev[index] = None
	return prev, nil
}

// EvaluateOutcome scans the winning lines in order and reports the first
// completed one; a full board without a line is a draw.
func EvaluateOutcome(b Board) Outcome {
	if winner := b.Winner(); winner != None {
		return Outcome{Status: Win, Winner: winner}
	}
	if b.IsFull() {
		return Outcome{Status: Draw}
	}
	return Outcome{Status: InProgress}
}

// Winner returns the owner of the first completed line, or None.
func (b Board) Winner() PlayerMark {
	for _, line := range WinningLines {
		if b[line[0]] != None && b[line[0]] == b[line[1]] && b[line[1]] == b[line[2]] {
			return b[line[0]]
		}
	}
	return None
}

// HasLine reports whether mark owns a completed line.
func (b Board) HasLine(mark PlayerMark) bool {
	for _, line := range WinningLines {
		if b[line[0]] == mark && b[line[1]] == mark && b[line[2]] == mark {
			return true
		}
	}
	return false
}

// IsFull checks if no empty cell remains.
func (b Board) IsFull() bool {
	for _, cell := range b {
		if cell == None {
			return false
		}
	}
	return true
}

// EmptyCells lists the empty indexes in ascending order.
func (b Board) EmptyCells() []int {
	cells := make([]int, 0, CellCount)
	for i, cell := range b {
		if cell == None {
			cells = append(cells, i)
		}
	}
	return cells
}

// Count returns how many cells hold mark.
func (b Board) Count(mark PlayerMark) int {
	n := 0
	for _, cell := range b {
		if cell == mark {
			n++
		}
	}
	return n
}

// NextMark derives whose turn it is from the mark counts. X always moves first.
func (b Board) NextMark() PlayerMark {
	if b.Count(PlayerX) == b.Count(PlayerO) {
		return PlayerX
	}
	return PlayerO
}

// Validate checks that b could have been reached by alternating play starting with X.
func (b Board) Validate() error {
	for i, cell := range b {
		if cell != None && cell != PlayerX && cell != PlayerO {
			return fmt.Errorf("cell %d holds unknown mark %q", i, cell)
		}
	}

	x, o := b.Count(PlayerX), b.Count(PlayerO)
	if x != o && x != o+1 {
		return fmt.Errorf("unreachable board: %d X marks and %d O marks", x, o)
	}
	if b.HasLine(PlayerX) && b.HasLine(PlayerO) {
		return errors.New("unreachable board: both players have a line")
	}
	return nil
}

// Rows returns the board as a slice of rows, handy for renderers.
func (b Board) Rows() [][]PlayerMark {
	rows := make([][]PlayerMark, 3)
	for r := range rows {
		rows[r] = append([]PlayerMark(nil), b[r*3:r*3+3]...)
	}
	return rows
}

// Opponent returns the other player's mark.
func Opponent(mark PlayerMark) PlayerMark {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// Game pairs a board with the player to move. It is a value: Move returns a new Game.
type Game struct {
	Board       Board      `json:"board"`
	CurrentTurn PlayerMark `json:"next"`
}

// NewGame returns an empty board with X to move.
func NewGame() Game {
	return Game{CurrentTurn: PlayerX}
}

// Move places the current player's mark at index and hands the turn over.
func (g Game) Move(index int) (Game, error) {
	board, err := ApplyMove(g.Board, index, g.CurrentTurn)
	if err != nil {
		return g, err
	}
	return Game{Board: board, CurrentTurn: Opponent(g.CurrentTurn)}, nil
}

// Outcome evaluates the game's board.
func (g Game) Outcome() Outcome {
	return EvaluateOutcome(g.Board)
}
