package player

import (
	"sync"
	"time"
)

// PlayerStatus is the connection state stored for a player.
type PlayerStatus string

const (
	StatusConnected    PlayerStatus = "connected"
	StatusDisconnected PlayerStatus = "disconnected"
)

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Player is a device attached to a session. Everyone sitting at that device
// shares the one connection.
type Player struct {
	ID       string
	Conn     Connection
	Status   PlayerStatus
	LastSeen time.Time

	writeMu sync.Mutex
}

// NewPlayer creates a connected player.
func NewPlayer(id string, conn Connection) *Player {
	return &Player{
		ID:       id,
		Conn:     conn,
		Status:   StatusConnected,
		LastSeen: time.Now(),
	}
}

// Send writes a text frame. gorilla/websocket allows a single concurrent writer,
// so writes are serialized per player.
func (p *Player) Send(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.Conn.WriteMessage(TextMessage, data)
}

// Ping writes a control ping frame.
func (p *Player) Ping() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.Conn.WriteMessage(PingMessage, nil)
}

// Frame types, matching gorilla/websocket's constants.
const (
	TextMessage = 1
	PingMessage = 9
)
