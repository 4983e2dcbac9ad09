// Package sqlite provides a SQLite-backed transcript repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/sqlite/migrations"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/textfile"
)

// DriverName identifies the SQLite backend.
const DriverName = "sqlite"

const migrationTable = "schema_migrations"

// Store persists transcripts in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite transcript store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Driver implements transcript.Repository.
func (s *Store) Driver() string {
	return DriverName
}

// Save replaces the transcript stored under key in one transaction.
func (s *Store) Save(ctx context.Context, key string, t *transcript.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return shared.ErrEmptyStorageKey
	}
	if err := s.save(ctx, key, t); err != nil {
		return shared.WrapError("storage", "Save", shared.ErrTranscriptNotSaved,
			fmt.Sprintf("cannot save transcript %q", key), err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, t *transcript.Transcript) error {
	fingerprint := textfile.Fingerprint(t)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.QueryRowContext(ctx,
		`SELECT fingerprint FROM transcripts WHERE storage_key = ?`, key,
	).Scan(&stored)
	switch {
	case err == nil && stored == fingerprint:
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read fingerprint: %w", err)
	}

	// Child rows go with the parent through ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE storage_key = ?`, key); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transcripts (id, storage_key, student_name, fingerprint, saved_at) VALUES (?, ?, ?, ?, ?)`,
		id, key, t.StudentName(), fingerprint, time.Now().UTC().UnixMilli(),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("concurrent save of %q: %w", key, err)
		}
		return fmt.Errorf("insert transcript: %w", err)
	}

	semStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_semesters (transcript_id, semester_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare semesters: %w", err)
	}
	defer semStmt.Close()

	courseStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_courses (transcript_id, semester_id, position, code, name, credits, grade)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare courses: %w", err)
	}
	defer courseStmt.Close()

	for _, sem := range t.Semesters() {
		if _, err := semStmt.ExecContext(ctx, id, sem.ID()); err != nil {
			return fmt.Errorf("insert semester %s: %w", sem.ID(), err)
		}
		for pos, c := range sem.Courses() {
			if _, err := courseStmt.ExecContext(ctx, id, sem.ID(), pos, c.Code, c.Name, c.Credits, c.Grade); err != nil {
				return fmt.Errorf("insert course %s/%s: %w", sem.ID(), c.Code, err)
			}
		}
	}

	return tx.Commit()
}

// Load reads the transcript stored under key.
func (s *Store) Load(ctx context.Context, key string) (*transcript.Transcript, transcript.LoadStats, error) {
	var stats transcript.LoadStats
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if key == "" {
		return nil, stats, shared.ErrEmptyStorageKey
	}

	var id, name string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, student_name FROM transcripts WHERE storage_key = ?`, key,
	).Scan(&id, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stats, shared.WrapError("storage", "Load", shared.ErrTranscriptNotFound,
				fmt.Sprintf("no transcript stored under %q", key), err)
		}
		return nil, stats, loadError(key, err)
	}

	b := transcript.NewBuilder(name)
	if err := s.loadSemesters(ctx, id, b); err != nil {
		return nil, stats, loadError(key, err)
	}
	accepted, err := s.loadCourses(ctx, id, b)
	if err != nil {
		return nil, stats, loadError(key, err)
	}
	stats.Accepted = accepted
	return b.Build(), stats, nil
}

func (s *Store) loadSemesters(ctx context.Context, id string, b *transcript.Builder) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT semester_id FROM transcript_semesters WHERE transcript_id = ?`, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var semID string
		if err := rows.Scan(&semID); err != nil {
			return err
		}
		b.Semester(semID)
	}
	return rows.Err()
}

func (s *Store) loadCourses(ctx context.Context, id string, b *transcript.Builder) (int, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT semester_id, code, name, credits, grade
		FROM transcript_courses
		WHERE transcript_id = ?
		ORDER BY semester_id, position`, id)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			semID string
			c     transcript.Course
		)
		if err := rows.Scan(&semID, &c.Code, &c.Name, &c.Credits, &c.Grade); err != nil {
			return n, err
		}
		b.Course(semID, c)
		n++
	}
	return n, rows.Err()
}

// Keys lists the storage keys with a saved transcript, most recent first.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT storage_key FROM transcripts ORDER BY saved_at DESC, storage_key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func loadError(key string, err error) error {
	return shared.WrapError("storage", "Load", shared.ErrTranscriptNotLoaded,
		fmt.Sprintf("cannot load transcript %q", key), err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// applyMigrations executes each embedded *.sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func extractUpMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	if downIdx := strings.Index(content, down); downIdx != -1 {
		return content[upIdx+len(up) : downIdx]
	}
	return content[upIdx+len(up):]
}
