package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studypomo/internal/modules/session/domain"
	sessionout "studypomo/internal/modules/session/port/out"
	apperrors "studypomo/internal/platform/errors"
	"studypomo/internal/platform/tx"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteSessionRepository struct {
	db *sql.DB
}

// OpenSQLite opens the session database, creating the file and schema as needed.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	return db, nil
}

func NewSQLiteSessionRepository(db *sql.DB) (*SQLiteSessionRepository, error) {
	repo := &SQLiteSessionRepository{db: db}
	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

var _ sessionout.SessionRepository = (*SQLiteSessionRepository)(nil)

func (r *SQLiteSessionRepository) ensureSchema(ctx context.Context) error {
	ddl := []string{`
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  session_type TEXT NOT NULL,
  status TEXT NOT NULL,
  planned_duration INTEGER NOT NULL,
  actual_duration INTEGER NOT NULL DEFAULT 0,
  subject_area_id TEXT NOT NULL DEFAULT '',
  settings TEXT NOT NULL DEFAULT '',
  was_interrupted INTEGER NOT NULL DEFAULT 0,
  notes TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  completed_at TEXT NOT NULL DEFAULT ''
)`,
		// at most one session may be active at a time
		`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active ON sessions(status) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at)`,
	}
	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create sessions schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteSessionRepository) Insert(ctx context.Context, s domain.Session) error {
	const stmt = `
INSERT INTO sessions (id, session_type, status, planned_duration, actual_duration, subject_area_id, settings, was_interrupted, notes, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.From(ctx, r.db).ExecContext(ctx, stmt,
		s.ID,
		s.SessionType,
		string(s.Status),
		s.PlannedDuration,
		s.ActualDuration,
		s.SubjectAreaID,
		s.Settings,
		s.WasInterrupted,
		s.Notes,
		formatTime(s.StartedAt),
		formatTime(s.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: insert session %s", apperrors.ErrActiveSessionExists, s.ID)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) Update(ctx context.Context, s domain.Session) error {
	const stmt = `
UPDATE sessions SET
  status = ?, actual_duration = ?, was_interrupted = ?, notes = ?, completed_at = ?
WHERE id = ?`
	result, err := tx.From(ctx, r.db).ExecContext(ctx, stmt,
		string(s.Status),
		s.ActualDuration,
		s.WasInterrupted,
		s.Notes,
		formatTime(s.CompletedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

const selectColumns = `SELECT id, session_type, status, planned_duration, actual_duration, subject_area_id, settings, was_interrupted, notes, started_at, completed_at FROM sessions`

func (r *SQLiteSessionRepository) Get(ctx context.Context, id string) (domain.Session, error) {
	row := tx.From(ctx, r.db).QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanSession(row)
}

func (r *SQLiteSessionRepository) GetActive(ctx context.Context) (domain.Session, error) {
	row := tx.From(ctx, r.db).QueryRowContext(ctx, selectColumns+` WHERE status = ?`, string(domain.StatusActive))
	return scanSession(row)
}

func (r *SQLiteSessionRepository) List(ctx context.Context, status domain.Status, limit int) ([]domain.Session, error) {
	query := selectColumns
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := tx.From(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		s                      domain.Session
		status                 string
		startedAt, completedAt string
	)
	err := row.Scan(&s.ID, &s.SessionType, &status, &s.PlannedDuration, &s.ActualDuration,
		&s.SubjectAreaID, &s.Settings, &s.WasInterrupted, &s.Notes, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	s.Status = domain.Status(status)
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return domain.Session{}, err
	}
	if s.CompletedAt, err = parseTime(completedAt); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse session time %q: %w", raw, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
