package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// openTestConnection connects to TRANSCRIPT_TEST_DATABASE_URL or skips.
func openTestConnection(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv("TRANSCRIPT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TRANSCRIPT_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := NewConnection(ctx, Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return conn
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=transcripts user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())

	poolCfg, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(5), poolCfg.MaxConns)
}

func TestGetMigrations(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestTranscriptRepository_SaveLoad(t *testing.T) {
	conn := openTestConnection(t)
	repo := NewTranscriptRepository(conn)
	ctx := context.Background()
	key := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = repo.Delete(context.Background(), key) })

	tr := transcript.New()
	tr.SetStudentName("Aigerim")
	require.NoError(t, tr.AddSemester("202520"))
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddSemester("202610"))
	require.NoError(t, tr.AddCourse("202510", transcript.Course{Code: "MAT101", Credits: 4, Grade: "B"}))
	require.NoError(t, tr.AddCourse("202510", transcript.Course{Code: "CSC101", Name: "Intro", Credits: 3, Grade: "B"}))
	require.NoError(t, tr.AddCourse("202520", transcript.Course{Code: "CSC101", Name: "Intro", Credits: 3, Grade: "A"}))

	require.NoError(t, repo.Save(ctx, key, tr))
	// Unchanged content is a no-op write.
	require.NoError(t, repo.Save(ctx, key, tr))

	got, stats, err := repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Accepted)
	assert.Equal(t, "Aigerim", got.StudentName())
	assert.Equal(t, tr.Semesters(), got.Semesters())
	assert.Equal(t, tr.CumulativeGPA(), got.CumulativeGPA())

	require.NoError(t, tr.DeleteSemester("202510"))
	require.NoError(t, repo.Save(ctx, key, tr))
	got, _, err = repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, 1, got.CourseCount())
}

func TestTranscriptRepository_LoadMissing(t *testing.T) {
	conn := openTestConnection(t)
	repo := NewTranscriptRepository(conn)

	_, _, err := repo.Load(context.Background(), "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, shared.ErrTranscriptNotFound)
	assert.True(t, shared.IsNotFound(err))
}
