package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	payload    TEXT,
	failed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS dead_letters_failed_at ON dead_letters (failed_at);
CREATE TABLE IF NOT EXISTS cursors (
	service      TEXT PRIMARY KEY,
	cursor_value INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);`

// Repository implements domain.DeadLetterSink and domain.CursorRepository
// on a local SQLite file. It stays writable while the wide-column store is
// down, which is when most dead letters are produced.
type Repository struct {
	db *sql.DB
}

// StoredDeadLetter is a dead letter as read back from the database.
type StoredDeadLetter struct {
	ID       int64           `json:"id"`
	Kind     string          `json:"kind"`
	Key      string          `json:"key"`
	Stage    string          `json:"stage"`
	Reason   string          `json:"reason"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	FailedAt time.Time       `json:"failed_at"`
}

// NewRepository opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database. The caller should call
// Close when the repository is no longer needed.
func NewRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps an in-memory
	// database alive for the life of the repository.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordDeadLetter stores a failed event with its JSON payload.
func (r *Repository) RecordDeadLetter(ctx context.Context, dl *domain.DeadLetter) error {
	var payload sql.NullString
	if dl.Event != nil {
		b, err := json.Marshal(dl.Event)
		if err != nil {
			return fmt.Errorf("marshal dead letter payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	failedAt := dl.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dead_letters (kind, key, stage, reason, payload, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		dl.Kind, dl.Key, dl.Stage, dl.Reason, payload, failedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert dead letter (kind=%s, key=%s): %w", dl.Kind, dl.Key, err)
	}
	return nil
}

// ListDeadLetters returns the most recent dead letters, newest first.
func (r *Repository) ListDeadLetters(ctx context.Context, limit int) ([]StoredDeadLetter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, key, stage, reason, payload, failed_at
		FROM dead_letters
		ORDER BY failed_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query dead letters (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var out []StoredDeadLetter
	for rows.Next() {
		var (
			dl       StoredDeadLetter
			payload  sql.NullString
			failedAt int64
		)
		if err := rows.Scan(&dl.ID, &dl.Kind, &dl.Key, &dl.Stage, &dl.Reason, &payload, &failedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if payload.Valid {
			dl.Payload = json.RawMessage(payload.String)
		}
		dl.FailedAt = time.UnixMilli(failedAt).UTC()
		out = append(out, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

// GetCursor retrieves the saved firehose cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the firehose cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		service, cursor, time.Now().UnixMilli(),
	)
	return err
}
