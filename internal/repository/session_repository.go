package repository

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/game"
	"ctchen222/tictactoe-minimax/internal/session"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Hash fields of a session:<id> key.
const (
	FieldBoard      = "board"
	FieldNext       = "next"
	FieldMode       = "mode"
	FieldOwner      = "owner"
	FieldPhase      = "phase"
	FieldGeneration = "generation"
	FieldVersion    = "version"
	FieldHistory    = "history"
	FieldWinner     = "winner"
	FieldStatus     = "status"
	FieldUpdatedAt  = "updated_at"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleSnapshot is returned when a snapshot is not newer than the stored one.
	ErrStaleSnapshot = errors.New("stale session snapshot")
)

// SessionRepository stores session snapshots.
type SessionRepository interface {
	Save(ctx context.Context, snap session.Snapshot) error
	FindByID(ctx context.Context, id string) (session.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

type redisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionRepository creates a Redis-based SessionRepository. Keys expire ttl
// after the last save; zero keeps them forever.
func NewSessionRepository(rdb *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Save writes snap unless the stored snapshot already has the same or a newer version.
func (r *redisSessionRepository) Save(ctx context.Context, snap session.Snapshot) error {
	ctx, span := tracer.Start(ctx, "SessionRepository.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", snap.ID),
		attribute.Int64("session.version", int64(snap.Version)),
	)

	boardJSON, err := json.Marshal(snap.Board)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}
	history := snap.History
	if history == nil {
		history = []int{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	key := sessionKey(snap.ID)
	txf := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, FieldVersion).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			version, err := strconv.ParseUint(stored, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt version %q for %s: %w", stored, key, err)
			}
			if version > snap.Version || (version == snap.Version && version != 0) {
				return fmt.Errorf("%w: stored version %d, got %d", ErrStaleSnapshot, version, snap.Version)
			}
		}

		pipe := tx.TxPipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			FieldBoard:      boardJSON,
			FieldNext:       string(snap.Next),
			FieldMode:       string(snap.Mode),
			FieldOwner:      snap.Owner,
			FieldPhase:      string(snap.Phase),
			FieldGeneration: snap.Generation,
			FieldVersion:    snap.Version,
			FieldHistory:    historyJSON,
			FieldWinner:     string(snap.Outcome.Winner),
			FieldStatus:     string(snap.Outcome.Status),
			FieldUpdatedAt:  snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		_, err = pipe.Exec(ctx)
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save session")
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("%w: concurrent update of %s", ErrStaleSnapshot, key)
		}
		return err
	}
	return nil
}

// FindByID retrieves a snapshot. The outcome is recomputed from the stored board.
func (r *redisSessionRepository) FindByID(ctx context.Context, id string) (session.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "SessionRepository.FindByID")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	data, err := r.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to get session from redis: %w", err)
	}
	if len(data) == 0 {
		return session.Snapshot{}, ErrSessionNotFound
	}
	return decodeSnapshot(id, data)
}

// Delete removes a stored session.
func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SessionRepository.Delete")
	defer span.End()

	return r.rdb.Del(ctx, sessionKey(id)).Err()
}

func decodeSnapshot(id string, data map[string]string) (session.Snapshot, error) {
	snap := session.Snapshot{
		ID:    id,
		Mode:  session.Mode(data[FieldMode]),
		Owner: data[FieldOwner],
		Next:  game.PlayerMark(data[FieldNext]),
		Phase: session.Phase(data[FieldPhase]),
	}

	if err := json.Unmarshal([]byte(data[FieldBoard]), &snap.Board); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to unmarshal board: %w", err)
	}
	if raw := data[FieldHistory]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.History); err != nil {
			return session.Snapshot{}, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	var err error
	if snap.Generation, err = parseUint(data, FieldGeneration); err != nil {
		return session.Snapshot{}, err
	}
	if snap.Version, err = parseUint(data, FieldVersion); err != nil {
		return session.Snapshot{}, err
	}
	if raw := data[FieldUpdatedAt]; raw != "" {
		if snap.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return session.Snapshot{}, fmt.Errorf("failed to parse %s: %w", FieldUpdatedAt, err)
		}
	}

	snap.Outcome = game.EvaluateOutcome(snap.Board)
	return snap, nil
}

func parseUint(data map[string]string, field string) (uint64, error) {
	raw := data[field]
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return v, nil
}
