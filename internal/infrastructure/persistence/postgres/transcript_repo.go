package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/textfile"
)

// DriverName identifies the PostgreSQL backend.
const DriverName = "postgres"

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptRepository implements transcript.Repository for PostgreSQL.
type TranscriptRepository struct {
	conn *Connection
}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(conn *Connection) *TranscriptRepository {
	return &TranscriptRepository{conn: conn}
}

// Driver implements transcript.Repository.
func (r *TranscriptRepository) Driver() string {
	return DriverName
}

// Save replaces the transcript stored under key in one transaction.
// When the stored fingerprint already matches, nothing is written.
func (r *TranscriptRepository) Save(ctx context.Context, key string, t *transcript.Transcript) error {
	if key == "" {
		return shared.ErrEmptyStorageKey
	}
	fingerprint := textfile.Fingerprint(t)

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var (
			id     uuid.UUID
			stored string
		)
		err := tx.QueryRow(ctx,
			`SELECT id, fingerprint FROM transcripts WHERE storage_key = $1 FOR UPDATE`,
			key,
		).Scan(&id, &stored)

		switch {
		case IsNoRows(err):
			id = uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO transcripts (id, storage_key, student_name, fingerprint, saved_at)
				VALUES ($1, $2, $3, $4, NOW())
			`, id, key, t.StudentName(), fingerprint); err != nil {
				return fmt.Errorf("insert transcript: %w", err)
			}
		case err != nil:
			return fmt.Errorf("lock transcript: %w", err)
		case stored == fingerprint:
			return nil
		default:
			if _, err := tx.Exec(ctx,
				`DELETE FROM transcript_semesters WHERE transcript_id = $1`, id,
			); err != nil {
				return fmt.Errorf("clear semesters: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE transcripts SET student_name = $2, fingerprint = $3, saved_at = NOW()
				WHERE id = $1
			`, id, t.StudentName(), fingerprint); err != nil {
				return fmt.Errorf("update transcript: %w", err)
			}
		}

		return insertRows(ctx, tx, id, t)
	})
	if err != nil {
		return shared.WrapError("storage", "Save", shared.ErrTranscriptNotSaved,
			fmt.Sprintf("cannot save transcript %q", key), err)
	}
	return nil
}

// insertRows writes semesters with a batch and courses with COPY.
func insertRows(ctx context.Context, tx pgx.Tx, id uuid.UUID, t *transcript.Transcript) error {
	semesters := t.Semesters()
	if len(semesters) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	courseRows := make([][]any, 0, t.CourseCount())
	for _, sem := range semesters {
		batch.Queue(
			`INSERT INTO transcript_semesters (transcript_id, semester_id) VALUES ($1, $2)`,
			id, sem.ID(),
		)
		for pos, c := range sem.Courses() {
			courseRows = append(courseRows, []any{id, sem.ID(), pos, c.Code, c.Name, c.Credits, c.Grade})
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert semesters: %w", err)
	}

	if len(courseRows) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"transcript_courses"},
		[]string{"transcript_id", "semester_id", "position", "code", "name", "credits", "grade"},
		pgx.CopyFromRows(courseRows),
	)
	if err != nil {
		return fmt.Errorf("copy courses: %w", err)
	}
	return nil
}

// Load reads the transcript stored under key from a consistent snapshot.
func (r *TranscriptRepository) Load(ctx context.Context, key string) (*transcript.Transcript, transcript.LoadStats, error) {
	var stats transcript.LoadStats
	if key == "" {
		return nil, stats, shared.ErrEmptyStorageKey
	}

	var result *transcript.Transcript
	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		var (
			id   uuid.UUID
			name string
		)
		err := tx.QueryRow(ctx,
			`SELECT id, student_name FROM transcripts WHERE storage_key = $1`, key,
		).Scan(&id, &name)
		if err != nil {
			return err
		}
		b := transcript.NewBuilder(name)

		semRows, err := tx.Query(ctx,
			`SELECT semester_id FROM transcript_semesters WHERE transcript_id = $1`, id)
		if err != nil {
			return fmt.Errorf("query semesters: %w", err)
		}
		semesterIDs, err := pgx.CollectRows(semRows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan semesters: %w", err)
		}
		for _, semID := range semesterIDs {
			b.Semester(semID)
		}

		rows, err := tx.Query(ctx, `
			SELECT semester_id, code, name, credits, grade
			FROM transcript_courses
			WHERE transcript_id = $1
			ORDER BY semester_id, position
		`, id)
		if err != nil {
			return fmt.Errorf("query courses: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				semID string
				c     transcript.Course
			)
			if err := rows.Scan(&semID, &c.Code, &c.Name, &c.Credits, &c.Grade); err != nil {
				return fmt.Errorf("scan course: %w", err)
			}
			b.Course(semID, c)
			stats.Accepted++
		}
		if err := rows.Err(); err != nil {
			return err
		}

		result = b.Build()
		return nil
	})
	if err != nil {
		if IsNoRows(err) {
			return nil, stats, shared.WrapError("storage", "Load", shared.ErrTranscriptNotFound,
				fmt.Sprintf("no transcript stored under %q", key), err)
		}
		return nil, stats, shared.WrapError("storage", "Load", shared.ErrTranscriptNotLoaded,
			fmt.Sprintf("cannot load transcript %q", key), err)
	}
	return result, stats, nil
}

// Delete removes the transcript stored under key.
func (r *TranscriptRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM transcripts WHERE storage_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrTranscriptNotFound
	}
	return nil
}
