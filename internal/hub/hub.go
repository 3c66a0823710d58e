package hub

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/events"
	"ctchen222/tictactoe-minimax/internal/hub/types"
	"ctchen222/tictactoe-minimax/internal/repository"
	"ctchen222/tictactoe-minimax/internal/session"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("hub")

const idleSweepInterval = time.Minute

// Options wires the hub to its collaborators. Nil repositories and a nil Redis
// client run the hub purely in memory.
type Options struct {
	Sessions      repository.SessionRepository
	Players       repository.PlayerRepository
	Results       repository.ResultRepository
	Redis         *redis.Client
	Publisher     events.Publisher
	Calculator    session.MoveCalculator
	ComputerDelay time.Duration
	IdleTimeout   time.Duration
}

// Hub manages every live session on this server and the devices attached to them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	register   chan *types.RegistrationRequest
	unregister chan *types.Departure

	sessionRepo   repository.SessionRepository
	playerRepo    repository.PlayerRepository
	resultRepo    repository.ResultRepository
	rdb           *redis.Client
	publisher     events.Publisher
	calculator    session.MoveCalculator
	computerDelay time.Duration
	idleTimeout   time.Duration
}

// NewHub creates a new hub. Without Redis, events are handled in-process.
func NewHub(opts Options) *Hub {
	h := &Hub{
		sessions:      make(map[string]*session.Session),
		register:      make(chan *types.RegistrationRequest),
		unregister:    make(chan *types.Departure),
		sessionRepo:   opts.Sessions,
		playerRepo:    opts.Players,
		resultRepo:    opts.Results,
		rdb:           opts.Redis,
		publisher:     opts.Publisher,
		calculator:    opts.Calculator,
		computerDelay: opts.ComputerDelay,
		idleTimeout:   opts.IdleTimeout,
	}
	if h.publisher == nil {
		h.publisher = localPublisher{hub: h}
	}
	return h
}

// Run starts the hub. It returns when ctx is cancelled, closing every live session.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.runEventSubscriber(ctx)
	}

	sweep := time.NewTicker(idleSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			slog.Info("Hub stopped.")
			return

		case req := <-h.register:
			h.handleRegistration(req)

		case d := <-h.unregister:
			h.handleDeparture(ctx, d)

		case now := <-sweep.C:
			h.closeIdleSessions(ctx, now)
		}
	}
}

// Register returns the register channel.
func (h *Hub) Register() chan<- *types.RegistrationRequest {
	return h.register
}

// Unregister returns the unregister channel.
func (h *Hub) Unregister() chan<- *types.Departure {
	return h.unregister
}

// CreateSession starts a new session with a fresh board.
func (h *Hub) CreateSession(ctx context.Context, mode session.Mode, owner string) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "hub.CreateSession", trace.WithAttributes(
		attribute.String("session.mode", string(mode)),
	))
	defer span.End()

	if _, err := session.ParseMode(string(mode)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid mode")
		return nil, err
	}

	s := session.New(uuid.New().String(), mode, h.sessionOptions(owner))
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	s.Start(ctx)

	span.SetAttributes(attribute.String("session.id", s.ID))
	slog.InfoContext(ctx, "Session created", "session.id", s.ID, "session.mode", mode, "owner", owner)
	return s, nil
}

// GetSession returns a live session, restoring it from the session repository
// when this server does not have it in memory.
func (h *Hub) GetSession(ctx context.Context, id string) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "hub.GetSession", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok {
		return s, nil
	}

	if h.sessionRepo == nil {
		return nil, repository.ErrSessionNotFound
	}
	snap, err := h.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Could not load session")
		}
		return nil, err
	}

	restored, err := session.Restore(snap, h.sessionOptions(snap.Owner))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not restore session")
		return nil, err
	}

	h.mu.Lock()
	// Another request may have restored it while we were reading Redis.
	if existing, ok := h.sessions[id]; ok {
		h.mu.Unlock()
		return existing, nil
	}
	h.sessions[id] = restored
	h.mu.Unlock()
	restored.Start(ctx)

	slog.InfoContext(ctx, "Session restored from store", "session.id", id, "version", snap.Version)
	return restored, nil
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) sessionOptions(owner string) session.Options {
	return session.Options{
		Owner:         owner,
		Store:         h.sessionRepo,
		Publisher:     h.publisher,
		Calculator:    h.calculator,
		ComputerDelay: h.computerDelay,
	}
}

// closeIdleSessions closes sessions nobody is watching that have not handled a
// command for idleTimeout. Their snapshots stay in the store.
func (h *Hub) closeIdleSessions(ctx context.Context, now time.Time) {
	if h.idleTimeout <= 0 {
		return
	}

	h.mu.RLock()
	candidates := make([]*session.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if now.Sub(s.IdleSince()) >= h.idleTimeout {
			candidates = append(candidates, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range candidates {
		viewers, err := s.ViewerCount(ctx)
		if err == nil && viewers > 0 {
			continue
		}
		h.mu.Lock()
		delete(h.sessions, s.ID)
		h.mu.Unlock()
		s.Close()
		slog.InfoContext(ctx, "Closed idle session", "session.id", s.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.Close()
		delete(h.sessions, id)
	}
}
