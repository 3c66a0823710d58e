package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MoveList is a game's move order, stored as a JSON array.
type MoveList []int

// Value implements driver.Valuer.
func (m MoveList) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *MoveList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into MoveList", src)
	}
	return json.Unmarshal(raw, (*[]int)(m))
}

// GameResult is one finished game.
type GameResult struct {
	ID         int64     `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"sessionId"`
	Generation uint64    `db:"generation" json:"generation"`
	Mode       string    `db:"mode" json:"mode"`
	Owner      string    `db:"owner" json:"owner,omitempty"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Winner     string    `db:"winner" json:"winner,omitempty"`
	Moves      MoveList  `db:"moves" json:"moves"`
	FinishedAt time.Time `db:"finished_at" json:"finishedAt"`
}

// StatRow counts finished games for one mode, outcome and winner.
type StatRow struct {
	Mode    string `db:"mode"`
	Outcome string `db:"outcome"`
	Winner  string `db:"winner"`
	Games   int64  `db:"games"`
}

// ResultRepository stores finished games.
type ResultRepository interface {
	// Record stores a result. Recording the same session generation twice is a no-op.
	Record(ctx context.Context, result *GameResult) error
	// Stats aggregates results, optionally restricted to one owner.
	Stats(ctx context.Context, owner string) ([]StatRow, error)
	// ListRecent returns the newest results first, optionally restricted to one owner.
	ListRecent(ctx context.Context, owner string, limit int) ([]GameResult, error)
}

type sqliteResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new SQLite-based ResultRepository.
func NewResultRepository(db *sqlx.DB) ResultRepository {
	return &sqliteResultRepository{db: db}
}

func (r *sqliteResultRepository) Record(ctx context.Context, result *GameResult) error {
	ctx, span := tracer.Start(ctx, "ResultRepository.Record")
	defer span.End()

	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now()
	}
	result.FinishedAt = result.FinishedAt.UTC()

	query := `INSERT OR IGNORE INTO game_results
		(session_id, generation, mode, owner, outcome, winner, moves, finished_at)
		VALUES (:session_id, :generation, :mode, :owner, :outcome, :winner, :moves, :finished_at)`
	res, err := r.db.NamedExecContext(ctx, query, result)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record game result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err := res.LastInsertId(); err == nil {
			result.ID = id
		}
	}
	return nil
}

func (r *sqliteResultRepository) Stats(ctx context.Context, owner string) ([]StatRow, error) {
	ctx, span := tracer.Start(ctx, "ResultRepository.Stats")
	defer span.End()

	query := `SELECT mode, outcome, winner, COUNT(*) AS games FROM game_results`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` GROUP BY mode, outcome, winner ORDER BY mode, outcome, winner`

	var rows []StatRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate game results: %w", err)
	}
	return rows, nil
}

func (r *sqliteResultRepository) ListRecent(ctx context.Context, owner string, limit int) ([]GameResult, error) {
	ctx, span := tracer.Start(ctx, "ResultRepository.ListRecent")
	defer span.End()

	query := `SELECT id, session_id, generation, mode, owner, outcome, winner, moves, finished_at FROM game_results`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	results := []GameResult{}
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list game results: %w", err)
	}
	return results, nil
}
