package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/kikiluvv/overlaycut/internal/timeline"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when no session has the requested id
var ErrNotFound = errors.New("session not found")

// Store persists sessions in a SQLite database
type Store struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at dbPath and applies migrations
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s := &Store{
		conn:   conn,
		logger: logger.With().Str("component", "session").Logger(),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}

		s.logger.Debug().Str("name", name).Msg("applied migration")
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}
	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// Save inserts or replaces a session. CreatedAt is kept from the first save.
func (s *Store) Save(ctx context.Context, st State) error {
	if st.ID == "" {
		return errors.New("save session: id is required")
	}
	overlaysJSON, err := json.Marshal(st.Overlays)
	if err != nil {
		return fmt.Errorf("encode overlays: %w", err)
	}

	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, source, duration, playhead, trim_start, trim_end, mode, overlays,
			preview_width, preview_height, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			duration = excluded.duration,
			playhead = excluded.playhead,
			trim_start = excluded.trim_start,
			trim_end = excluded.trim_end,
			mode = excluded.mode,
			overlays = excluded.overlays,
			preview_width = excluded.preview_width,
			preview_height = excluded.preview_height,
			updated_at = excluded.updated_at
	`, st.ID, st.Source, st.Timeline.Duration, st.Timeline.Current, st.Timeline.TrimStart, st.Timeline.TrimEnd,
		st.Timeline.Mode.String(), string(overlaysJSON), st.PreviewSize.Width, st.PreviewSize.Height,
		st.CreatedAt.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session %s: %w", st.ID, err)
	}
	return nil
}

// Load reads a session and repairs anything invalid in it
func (s *Store) Load(ctx context.Context, id string) (State, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, source, duration, playhead, trim_start, trim_end, mode, overlays,
			preview_width, preview_height, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	var (
		st                   State
		mode, overlaysJSON   string
		createdAt, updatedAt string
	)
	err := row.Scan(&st.ID, &st.Source, &st.Timeline.Duration, &st.Timeline.Current,
		&st.Timeline.TrimStart, &st.Timeline.TrimEnd, &mode, &overlaysJSON,
		&st.PreviewSize.Width, &st.PreviewSize.Height, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, fmt.Errorf("load session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return State{}, fmt.Errorf("load session %s: %w", id, err)
	}

	if m, err := timeline.ParseMode(mode); err == nil {
		st.Timeline.Mode = m
	} else {
		s.logger.Warn().Str("session", id).Str("mode", mode).Msg("unknown mode, using scrub")
	}
	if err := json.Unmarshal([]byte(overlaysJSON), &st.Overlays); err != nil {
		s.logger.Warn().Err(err).Str("session", id).Msg("discarding unreadable overlays")
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return st.Repair(), nil
}

// Summary is a row of List
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List returns saved sessions, most recently updated first
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, source, updated_at FROM sessions ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Source, &updatedAt); err != nil {
			return nil, err
		}
		sum.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}
