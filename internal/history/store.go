// Package history keeps a SQLite-backed log of finished compiles.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/waabox/melodeck/internal/domain"
)

// ErrNotFound is returned when no compile matches the requested id.
var ErrNotFound = errors.New("compile not found")

// Store provides SQLite-backed compile history.
type Store struct {
	db *sql.DB
}

// Ensure Store implements the history ports.
var (
	_ domain.Recorder      = (*Store)(nil)
	_ domain.HistoryLister = (*Store)(nil)
)

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Compiles are serialised by the caller; one connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a finished compile. Recording the same id twice replaces the entry.
func (s *Store) Record(rec domain.CompileRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO compiles (id, status, exit_code, artifact_present, source_bytes, output, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			exit_code = excluded.exit_code,
			artifact_present = excluded.artifact_present,
			source_bytes = excluded.source_bytes,
			output = excluded.output,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`,
		rec.ID,
		rec.Status.String(),
		rec.ExitCode,
		rec.ArtifactPresent,
		rec.SourceBytes,
		rec.Output,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording compile %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the compile with the given id.
func (s *Store) Get(id string) (domain.CompileRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, status, exit_code, artifact_present, source_bytes, output, started_at, finished_at
		FROM compiles WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CompileRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns up to limit compiles, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]domain.CompileRecord, error) {
	query := `
		SELECT id, status, exit_code, artifact_present, source_bytes, output, started_at, finished_at
		FROM compiles ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.CompileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.CompileRecord, error) {
	var rec domain.CompileRecord
	var status string
	var output sql.NullString
	if err := row.Scan(
		&rec.ID,
		&status,
		&rec.ExitCode,
		&rec.ArtifactPresent,
		&rec.SourceBytes,
		&output,
		&rec.StartedAt,
		&rec.FinishedAt,
	); err != nil {
		return domain.CompileRecord{}, err
	}
	kind, err := domain.ParseStatusKind(status)
	if err != nil {
		return domain.CompileRecord{}, err
	}
	rec.Status = kind
	rec.Output = output.String
	return rec, nil
}
