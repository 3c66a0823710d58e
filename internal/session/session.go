package session

//go:generate mockgen -source=session.go -destination=mocks/mock_session.go -package=mocks

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/events"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/player"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	heartbeatInterval    = 10 * time.Second
	DefaultComputerDelay = 500 * time.Millisecond

	// The computer always answers X in single mode.
	computerMark = game.PlayerO
)

var tracer = otel.Tracer("session")

var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrSessionClosed = errors.New("session closed")
	ErrInvalidMode   = errors.New("invalid mode")
)

// Mode selects who plays O.
type Mode string

const (
	ModeSingle Mode = "single" // human X against the computer
	ModeMulti  Mode = "multi"  // two humans sharing one device
)

// ParseMode accepts "single" or "multi".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeMulti:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Phase is where a session sits in the turn state machine.
type Phase string

const (
	PhaseAwaitingHuman    Phase = "awaiting_human"
	PhaseAwaitingComputer Phase = "awaiting_computer"
	PhaseTerminal         Phase = "terminal"
)

// Snapshot is a copy of a session's state at one point in time.
type Snapshot struct {
	ID         string          `json:"id"`
	Mode       Mode            `json:"mode"`
	Owner      string          `json:"owner,omitempty"`
	Board      game.Board      `json:"board"`
	Next       game.PlayerMark `json:"next"`
	Phase      Phase           `json:"phase"`
	Outcome    game.Outcome    `json:"outcome"`
	Generation uint64          `json:"generation"`
	Version    uint64          `json:"version"`
	History    []int           `json:"history"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// MoveCalculator defines an interface for an agent that can calculate a game move.
type MoveCalculator interface {
	CalculateNextMove(board game.Board, mark game.PlayerMark) (int, error)
}

// Store persists snapshots after every state change.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
}

// Options carries a session's collaborators. Nil Store and Publisher disable
// persistence and event publishing.
type Options struct {
	Owner         string
	Store         Store
	Publisher     events.Publisher
	Calculator    MoveCalculator
	ComputerDelay time.Duration
}

// Session owns one game on one device. Every mutation runs on the session's
// own goroutine, one command at a time.
type Session struct {
	ID string

	mode       Mode
	owner      string
	game       game.Game
	phase      Phase
	generation uint64
	version    uint64
	history    []int
	updatedAt  time.Time
	viewers    map[string]*player.Player

	store         Store
	publisher     events.Publisher
	calculator    MoveCalculator
	computerDelay time.Duration

	commands     chan func()
	done         chan struct{}
	startOnce    sync.Once
	closeOnce    sync.Once
	restored     bool
	lastActivity atomic.Int64
}

// New creates a session with an empty board and X to move.
func New(id string, mode Mode, opts Options) *Session {
	s := newSession(id, mode, opts)
	s.game = game.NewGame()
	s.phase = PhaseAwaitingHuman
	return s
}

// Restore rebuilds a session from a stored snapshot. Turn and phase are derived
// from the board again rather than trusted from storage.
func Restore(snap Snapshot, opts Options) (*Session, error) {
	if err := snap.Board.Validate(); err != nil {
		return nil, fmt.Errorf("cannot restore session %s: %w", snap.ID, err)
	}
	if _, err := ParseMode(string(snap.Mode)); err != nil {
		return nil, fmt.Errorf("cannot restore session %s: %w", snap.ID, err)
	}
	if opts.Owner == "" {
		opts.Owner = snap.Owner
	}

	s := newSession(snap.ID, snap.Mode, opts)
	s.game = game.Game{Board: snap.Board, CurrentTurn: snap.Board.NextMark()}
	s.phase = s.phaseFor(s.game)
	s.generation = snap.Generation
	s.version = snap.Version
	s.history = append([]int(nil), snap.History...)
	s.updatedAt = snap.UpdatedAt
	s.restored = true
	return s, nil
}

func newSession(id string, mode Mode, opts Options) *Session {
	delay := opts.ComputerDelay
	if delay <= 0 {
		delay = DefaultComputerDelay
	}
	s := &Session{
		ID:            id,
		mode:          mode,
		owner:         opts.Owner,
		updatedAt:     time.Now(),
		viewers:       make(map[string]*player.Player),
		store:         opts.Store,
		publisher:     opts.Publisher,
		calculator:    opts.Calculator,
		computerDelay: delay,
		commands:      make(chan func()),
		done:          make(chan struct{}),
	}
	s.touch()
	return s
}

// Start launches the session loop. New sessions are saved and announced;
// a restored session that was waiting for the computer schedules its reply.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run()
		_ = s.do(ctx, func() {
			if !s.restored {
				s.persist(ctx)
				gamesStarted.Add(ctx, 1, modeAttr(s.mode))
				s.publish(ctx, events.TypeSessionCreated, events.SessionCreatedPayload{
					SessionID: s.ID,
					Mode:      string(s.mode),
					Owner:     s.owner,
				})
			}
			if s.phase == PhaseAwaitingComputer {
				s.scheduleComputerTurn(s.generation)
			}
		})
	})
}

// Close stops the loop. Pending computer turns become no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed once the session stops.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// IdleSince reports when the session last handled a command.
func (s *Session) IdleSince() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Move applies a human move. In single mode the human always plays X and the
// computer's reply is scheduled after the configured delay.
func (s *Session) Move(ctx context.Context, index int) (Snapshot, error) {
	var snap Snapshot
	var moveErr error
	if err := s.do(ctx, func() { snap, moveErr = s.applyHumanMove(ctx, index) }); err != nil {
		return Snapshot{}, err
	}
	return snap, moveErr
}

// Reset starts a fresh game. An empty mode keeps the current one.
func (s *Session) Reset(ctx context.Context, mode Mode) (Snapshot, error) {
	if mode != "" {
		if _, err := ParseMode(string(mode)); err != nil {
			return Snapshot{}, err
		}
	}
	var snap Snapshot
	if err := s.do(ctx, func() { snap = s.reset(ctx, mode) }); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.do(ctx, func() { snap = s.snapshot() }); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// do hands fn to the loop and waits until it has run.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		s.touch()
		fn()
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// The loop runs every command it receives to completion.
	<-finished
	return nil
}

func (s *Session) run() {
	pingTicker := time.NewTicker(heartbeatInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-s.done:
			slog.Info("Session loop stopping.", "session.id", s.ID)
			return

		case cmd := <-s.commands:
			cmd()

		case <-pingTicker.C:
			for _, p := range s.viewers {
				if p.Status != player.StatusConnected {
					continue
				}
				if err := p.Ping(); err != nil {
					slog.Warn("Failed to send ping to player, assuming disconnect", "player.id", p.ID, "error", err)
				}
			}
		}
	}
}

func (s *Session) applyHumanMove(ctx context.Context, index int) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "session.Move", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("session.mode", string(s.mode)),
		attribute.Int("move.index", index),
	))
	defer span.End()

	if s.phase == PhaseAwaitingComputer {
		span.SetAttributes(attribute.Bool("move.valid", false))
		span.SetStatus(codes.Error, "Move while computer is thinking")
		return s.snapshot(), ErrNotYourTurn
	}

	next, err := s.game.Move(index)
	if err != nil {
		slog.WarnContext(ctx, "invalid move", "session.id", s.ID, "index", index, "error", err)
		span.SetAttributes(attribute.Bool("move.valid", false))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid move")
		return s.snapshot(), err
	}
	span.SetAttributes(attribute.Bool("move.valid", true))

	s.commit(ctx, next, index, "human")
	if s.phase == PhaseAwaitingComputer {
		s.scheduleComputerTurn(s.generation)
	}
	return s.snapshot(), nil
}

// scheduleComputerTurn posts the reply after the pacing delay. The generation
// is captured now so a reset in the meantime turns the callback into a no-op.
func (s *Session) scheduleComputerTurn(generation uint64) {
	time.AfterFunc(s.computerDelay, func() {
		select {
		case s.commands <- func() { s.computerTurn(generation) }:
		case <-s.done:
		}
	})
}

func (s *Session) computerTurn(generation uint64) {
	ctx, span := tracer.Start(context.Background(), "session.computerTurn", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.Int64("session.generation", int64(generation)),
	))
	defer span.End()

	if generation != s.generation || s.phase != PhaseAwaitingComputer {
		slog.DebugContext(ctx, "discarding stale computer turn", "session.id", s.ID, "scheduled.generation", generation, "session.generation", s.generation)
		span.SetAttributes(attribute.Bool("computer.stale", true))
		return
	}
	if s.calculator == nil {
		slog.ErrorContext(ctx, "single mode session has no move calculator", "session.id", s.ID)
		span.SetStatus(codes.Error, "No move calculator")
		return
	}

	start := time.Now()
	index, err := s.calculator.CalculateNextMove(s.game.Board, computerMark)
	computerMoveDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		slog.ErrorContext(ctx, "computer could not find a move", "session.id", s.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Computer could not find a move")
		return
	}

	next, err := s.game.Move(index)
	if err != nil {
		slog.ErrorContext(ctx, "computer chose an invalid move", "session.id", s.ID, "index", index, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Computer chose an invalid move")
		return
	}
	span.SetAttributes(attribute.Int("move.index", index))
	s.commit(ctx, next, index, "computer")
}

// commit installs next as the current game and runs the post-move bookkeeping.
func (s *Session) commit(ctx context.Context, next game.Game, index int, actor string) {
	s.game = next
	s.history = append(s.history, index)
	s.version++
	s.updatedAt = time.Now()
	s.phase = s.phaseFor(next)

	movesApplied.Add(ctx, 1, modeAttr(s.mode), actorAttr(actor))
	s.persist(ctx)
	s.broadcast(ctx, &index)

	if s.phase != PhaseTerminal {
		return
	}
	outcome := next.Outcome()
	slog.InfoContext(ctx, "Game finished", "session.id", s.ID, "outcome", outcome.String(), "moves", len(s.history))
	gamesFinished.Add(ctx, 1, modeAttr(s.mode), outcomeAttr(outcome))
	s.publish(ctx, events.TypeGameFinished, events.GameFinishedPayload{
		SessionID:  s.ID,
		Generation: s.generation,
		Mode:       string(s.mode),
		Owner:      s.owner,
		Outcome:    string(outcome.Status),
		Winner:     string(outcome.Winner),
		Moves:      append([]int(nil), s.history...),
	})
}

func (s *Session) reset(ctx context.Context, mode Mode) Snapshot {
	ctx, span := tracer.Start(ctx, "session.Reset", trace.WithAttributes(
		attribute.String("session.id", s.ID),
	))
	defer span.End()

	if mode != "" {
		s.mode = mode
	}
	s.generation++
	s.version++
	s.game = game.NewGame()
	s.phase = PhaseAwaitingHuman
	s.history = nil
	s.updatedAt = time.Now()

	slog.InfoContext(ctx, "Session reset", "session.id", s.ID, "generation", s.generation, "mode", s.mode)
	gamesStarted.Add(ctx, 1, modeAttr(s.mode))
	s.persist(ctx)
	s.broadcast(ctx, nil)
	s.publish(ctx, events.TypeSessionReset, events.SessionResetPayload{
		SessionID:  s.ID,
		Generation: s.generation,
		Mode:       string(s.mode),
	})
	return s.snapshot()
}

func (s *Session) phaseFor(g game.Game) Phase {
	switch {
	case g.Outcome().IsTerminal():
		return PhaseTerminal
	case s.mode == ModeSingle && g.CurrentTurn == computerMark:
		return PhaseAwaitingComputer
	default:
		return PhaseAwaitingHuman
	}
}

func (s *Session) snapshot() Snapshot {
	next := s.game.CurrentTurn
	if s.phase == PhaseTerminal {
		next = game.None
	}
	return Snapshot{
		ID:         s.ID,
		Mode:       s.mode,
		Owner:      s.owner,
		Board:      s.game.Board,
		Next:       next,
		Phase:      s.phase,
		Outcome:    s.game.Outcome(),
		Generation: s.generation,
		Version:    s.version,
		History:    append([]int{}, s.history...),
		UpdatedAt:  s.updatedAt,
	}
}

// persist saves the current snapshot. The in-memory session stays authoritative
// when the store is unavailable.
func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.snapshot()); err != nil {
		slog.ErrorContext(ctx, "failed to save session snapshot", "session.id", s.ID, "version", s.version, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

func (s *Session) publish(ctx context.Context, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	event, err := events.New(eventType, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "session.id", s.ID, "event", eventType, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}
