package terminal

import (
	"bufio"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/pkg/proto"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/termenv"
)

const help = "Enter a cell 1-9, r to reset, m to switch mode, q to quit."

// Connection plays a session from a terminal. It implements player.Connection:
// updates written by the session are drawn on out, and lines typed on in are
// turned into client messages.
type Connection struct {
	out     *termenv.Output
	lines   *bufio.Scanner
	mode    string
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// NewConnection creates a terminal connection. Pass termenv.WithProfile to
// force a colour profile.
func NewConnection(in io.Reader, out io.Writer, opts ...termenv.OutputOption) *Connection {
	return &Connection{
		out:    termenv.NewOutput(out, opts...),
		lines:  bufio.NewScanner(in),
		closed: make(chan struct{}),
	}
}

// WriteMessage renders a server message. Non-text frames are ignored.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	if messageType != player.TextMessage {
		return nil
	}

	var msg proto.ServerToClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch msg.Type {
	case "assignment":
		var assignment proto.PlayerAssignmentMessage
		if err := json.Unmarshal(data, &assignment); err != nil {
			return err
		}
		c.mode = assignment.Mode
		fmt.Fprintln(c.out, c.out.String("Tic-Tac-Toe").Bold(), c.out.String("("+modeLabel(assignment.Mode)+")").Faint())
		fmt.Fprintln(c.out, help)
	case "update":
		if msg.Mode != "" {
			c.mode = msg.Mode
		}
		fmt.Fprint(c.out, Render(c.out, msg))
	case "error":
		fmt.Fprintln(c.out, c.out.String("! "+msg.Reason).Foreground(c.out.Color("1")))
	}
	return nil
}

// ReadMessage blocks for the next meaningful line of input. Quitting or the end
// of input reports io.EOF.
func (c *Connection) ReadMessage() (int, []byte, error) {
	for {
		select {
		case <-c.closed:
			return 0, nil, io.EOF
		default:
		}

		if !c.lines.Scan() {
			if err := c.lines.Err(); err != nil {
				return 0, nil, err
			}
			return 0, nil, io.EOF
		}

		msg, quit, ok := c.parse(strings.TrimSpace(c.lines.Text()))
		if quit {
			return 0, nil, io.EOF
		}
		if !ok {
			c.writeMu.Lock()
			fmt.Fprintln(c.out, help)
			c.writeMu.Unlock()
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, nil, err
		}
		return player.TextMessage, data, nil
	}
}

// Close stops reading input.
func (c *Connection) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *Connection) parse(line string) (proto.ClientToServerMessage, bool, bool) {
	switch strings.ToLower(line) {
	case "q", "quit", "exit":
		return proto.ClientToServerMessage{}, true, false
	case "r", "reset":
		return proto.ClientToServerMessage{Type: "reset"}, false, true
	case "m", "mode":
		next := "multi"
		c.writeMu.Lock()
		if c.mode == "multi" {
			next = "single"
		}
		c.writeMu.Unlock()
		return proto.ClientToServerMessage{Type: "reset", Mode: next}, false, true
	case "", "s", "sync":
		return proto.ClientToServerMessage{Type: "sync"}, false, true
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > game.CellCount {
		return proto.ClientToServerMessage{}, false, false
	}
	index := n - 1
	return proto.ClientToServerMessage{Type: "move", Index: &index}, false, true
}

// Render draws the board and a status line. Empty cells show the number to type.
func Render(out *termenv.Output, msg proto.ServerToClientMessage) string {
	var b strings.Builder
	b.WriteString("\n")

	var board game.Board
	if msg.Board != nil {
		board = *msg.Board
	}
	for r, row := range board.Rows() {
		b.WriteString(" ")
		for col, cell := range row {
			b.WriteString(renderCell(out, cell, r*3+col, msg.LastMove))
			if col < 2 {
				b.WriteString(" | ")
			}
		}
		b.WriteString("\n")
		if r < 2 {
			b.WriteString("---+---+---\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(status(out, msg))
	b.WriteString("\n")
	return b.String()
}

func renderCell(out *termenv.Output, cell game.PlayerMark, index int, lastMove *int) string {
	switch cell {
	case game.PlayerX, game.PlayerO:
		style := out.String(string(cell)).Foreground(markColor(out, cell))
		if lastMove != nil && *lastMove == index {
			style = style.Bold().Underline()
		}
		return style.String()
	}
	return out.String(strconv.Itoa(index + 1)).Faint().String()
}

func markColor(out *termenv.Output, mark game.PlayerMark) termenv.Color {
	if mark == game.PlayerX {
		return out.Color("#E88388")
	}
	return out.Color("#66C2CD")
}

func status(out *termenv.Output, msg proto.ServerToClientMessage) string {
	if msg.Outcome != nil {
		switch msg.Outcome.Status {
		case game.Win:
			return out.String(fmt.Sprintf("%s wins! Press r to play again.", msg.Outcome.Winner)).Bold().String()
		case game.Draw:
			return out.String("Draw. Press r to play again.").Bold().String()
		}
	}
	if msg.Phase == "awaiting_computer" {
		return out.String("Computer (O) is thinking...").Italic().String()
	}
	return fmt.Sprintf("%s to move.", msg.Next)
}

func modeLabel(mode string) string {
	if mode == "multi" {
		return "two players"
	}
	return "you are X against the computer"
}
