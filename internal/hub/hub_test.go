package hub

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/bot"
	"ctchen222/tictactoe-minimax/internal/db"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/player"
	"ctchen222/tictactoe-minimax/internal/repository"
	"ctchen222/tictactoe-minimax/internal/session"
	"ctchen222/tictactoe-minimax/pkg/proto"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu    sync.Mutex
	snaps map[string]session.Snapshot
}

func newMemorySessions() *memorySessions {
	return &memorySessions{snaps: make(map[string]session.Snapshot)}
}

func (m *memorySessions) Save(_ context.Context, snap session.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = snap
	return nil
}

func (m *memorySessions) FindByID(_ context.Context, id string) (session.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return session.Snapshot{}, repository.ErrSessionNotFound
	}
	return snap, nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != player.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, io.EOF
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.written))
	for _, raw := range c.written {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func newResultRepo(t *testing.T) repository.ResultRepository {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitializeDB(ctx, conn))
	return repository.NewResultRepository(conn)
}

func TestCreateAndGetSession(t *testing.T) {
	h := NewHub(Options{Calculator: &bot.Calculator{}})
	t.Cleanup(h.closeAll)
	ctx := context.Background()

	_, err := h.CreateSession(ctx, "online", "")
	require.ErrorIs(t, err, session.ErrInvalidMode)

	s, err := h.CreateSession(ctx, session.ModeMulti, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, h.SessionCount())

	got, err := h.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = h.GetSession(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestGetSessionRestoresFromStore(t *testing.T) {
	store := newMemorySessions()
	h := NewHub(Options{Sessions: store, Calculator: &bot.Calculator{}, ComputerDelay: time.Millisecond})
	t.Cleanup(h.closeAll)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.Snapshot{
		ID:         "stored",
		Mode:       session.ModeSingle,
		Owner:      "bob",
		Board:      game.Board{game.PlayerX},
		Generation: 4,
		Version:    1,
		History:    []int{0},
	}))

	s, err := h.GetSession(ctx, "stored")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := s.Snapshot(ctx)
		return err == nil && snap.Phase == session.PhaseAwaitingHuman
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := store.FindByID(ctx, "stored")
	require.NoError(t, err)
	assert.Equal(t, game.PlayerO, snap.Board[4])
	assert.Equal(t, "bob", snap.Owner)
	assert.Equal(t, uint64(4), snap.Generation)
}

func TestFinishedGamesAreRecorded(t *testing.T) {
	results := newResultRepo(t)
	h := NewHub(Options{Results: results})
	t.Cleanup(h.closeAll)
	ctx := context.Background()

	s, err := h.CreateSession(ctx, session.ModeMulti, "carol")
	require.NoError(t, err)
	for _, index := range []int{0, 3, 1, 4, 2} {
		_, err := s.Move(ctx, index)
		require.NoError(t, err)
	}

	recent, err := results.ListRecent(ctx, "carol", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, s.ID, recent[0].SessionID)
	assert.Equal(t, "win", recent[0].Outcome)
	assert.Equal(t, "X", recent[0].Winner)
	assert.Equal(t, repository.MoveList{0, 3, 1, 4, 2}, recent[0].Moves)

	// A rematch in the same session is a separate result.
	_, err = s.Reset(ctx, "")
	require.NoError(t, err)
	for _, index := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
		_, err := s.Move(ctx, index)
		require.NoError(t, err)
	}

	rows, err := results.Stats(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, []repository.StatRow{
		{Mode: "multi", Outcome: "draw", Games: 1},
		{Mode: "multi", Outcome: "win", Winner: "X", Games: 1},
	}, rows)
}

func TestRegistrationAttachesPlayer(t *testing.T) {
	store := newMemorySessions()
	h := NewHub(Options{Sessions: store, Calculator: &bot.Calculator{}})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	conn := newFakeConn()
	p := player.NewPlayer("device-1", conn)
	h.Register() <- &types.RegistrationRequest{Player: p, PlayerID: p.ID, Mode: "multi", Ctx: ctx}

	require.Eventually(t, func() bool { return len(conn.messages()) >= 2 }, time.Second, 5*time.Millisecond)
	msgs := conn.messages()
	assert.Equal(t, "assignment", msgs[0]["type"])
	assert.Equal(t, "multi", msgs[0]["mode"])
	assert.Equal(t, "update", msgs[1]["type"])
	sessionID, _ := msgs[0]["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	_, err := store.FindByID(ctx, sessionID)
	require.NoError(t, err)

	// A second device can watch the same session.
	other := newFakeConn()
	h.Register() <- &types.RegistrationRequest{Player: player.NewPlayer("device-2", other), SessionID: sessionID, Ctx: ctx}
	require.Eventually(t, func() bool { return len(other.messages()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.SessionCount())

	conn.Close()
	s, err := h.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := s.ViewerCount(ctx)
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRegistrationRejectsUnknownSession(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	conn := newFakeConn()
	h.Register() <- &types.RegistrationRequest{Player: player.NewPlayer("device-3", conn), SessionID: "nope", Ctx: ctx}

	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, 5*time.Millisecond)
	var msg proto.ServerToClientMessage
	raw, _ := json.Marshal(conn.messages()[0])
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "session not found", msg.Reason)
	assert.Zero(t, h.SessionCount())
}

func TestCloseIdleSessions(t *testing.T) {
	h := NewHub(Options{IdleTimeout: time.Minute})
	ctx := context.Background()

	idle, err := h.CreateSession(ctx, session.ModeMulti, "")
	require.NoError(t, err)
	watched, err := h.CreateSession(ctx, session.ModeMulti, "")
	require.NoError(t, err)
	t.Cleanup(h.closeAll)
	require.NoError(t, watched.Attach(ctx, player.NewPlayer("viewer", newFakeConn())))

	h.closeIdleSessions(ctx, time.Now())
	assert.Equal(t, 2, h.SessionCount())

	h.closeIdleSessions(ctx, time.Now().Add(time.Hour))
	assert.Equal(t, 1, h.SessionCount())

	select {
	case <-idle.Done():
	default:
		t.Fatal("idle session was not closed")
	}
	_, err = h.GetSession(ctx, watched.ID)
	require.NoError(t, err)
}
