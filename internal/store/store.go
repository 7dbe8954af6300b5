// Package store persists room metadata in SQLite. Membership and chat
// traffic are never written here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRoomNotFound is returned when no room row exists for an ID.
var ErrRoomNotFound = errors.New("room not found")

// Room is one persisted room.
type Room struct {
	ID          string
	Name        string
	Description string
	MaxUsers    int
	CreatedAt   time.Time
}

// Store persists room metadata in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent
	// room creation.
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	max_users INTEGER NOT NULL CHECK(max_users > 0),
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_created_at ON rooms(created_at_unix_ms);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	slog.Debug("sqlite migrations applied")
	return nil
}

// SaveRoom inserts a room or replaces the row with the same id.
func (s *Store) SaveRoom(ctx context.Context, r Room) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("room id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("room name is required")
	}
	if r.MaxUsers <= 0 {
		return fmt.Errorf("room max users must be positive")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO rooms (id, name, description, max_users, created_at_unix_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	max_users = excluded.max_users
`
	_, err := s.db.ExecContext(ctx, q, r.ID, r.Name, r.Description, r.MaxUsers, r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	slog.Debug("room persisted", "room_id", r.ID, "name", r.Name)
	return nil
}

// Rooms returns every persisted room, oldest first.
func (s *Store) Rooms(ctx context.Context) ([]Room, error) {
	const q = `
SELECT id, name, description, max_users, created_at_unix_ms
FROM rooms
ORDER BY created_at_unix_ms, name
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	slog.Debug("rooms loaded", "count", len(out))
	return out, rows.Err()
}

// RoomByID returns one persisted room.
func (s *Store) RoomByID(ctx context.Context, id string) (Room, error) {
	const q = `
SELECT id, name, description, max_users, created_at_unix_ms
FROM rooms
WHERE id = ?
`
	r, err := scanRoom(s.db.QueryRowContext(ctx, q, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	return r, err
}

// DeleteRoom removes a room row. Deleting an unknown id is not an error.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (Room, error) {
	var (
		r              Room
		createdAtUnixM int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.MaxUsers, &createdAtUnixM); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Room{}, err
		}
		return Room{}, fmt.Errorf("scan room: %w", err)
	}
	r.CreatedAt = time.UnixMilli(createdAtUnixM).UTC()
	return r, nil
}
