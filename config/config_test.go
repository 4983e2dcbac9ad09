package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "transcript-hub", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "transcript.csv", cfg.Storage.Key)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Redis.SummaryTTL)
	assert.False(t, cfg.Redis.Needed(cfg.Storage.Driver))
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Zero(t, cfg.Storage.AutosaveInterval)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"APP_ENV":                   "production",
		"TRANSCRIPT_STORAGE_DRIVER": " Postgres ",
		"TRANSCRIPT_STORAGE_KEY":    "aigerim",
		"DB_URL":                    "postgres://u:p@db:5432/t",
		"DB_MAX_CONNS":              "4",
		"REDIS_CACHE_ENABLED":       "true",
		"HTTP_PORT":                 "9000",
		"LOG_LEVEL":                 "debug",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "aigerim", cfg.Storage.Key)
	assert.Equal(t, int32(4), cfg.Postgres.MaxConns)
	assert.True(t, cfg.Redis.Needed(cfg.Storage.Driver))
	assert.Equal(t, 9000, cfg.HTTP.Port)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{"unknown driver", map[string]string{"TRANSCRIPT_STORAGE_DRIVER": "s3"}, "TRANSCRIPT_STORAGE_DRIVER"},
		{"postgres without url", map[string]string{"TRANSCRIPT_STORAGE_DRIVER": "postgres"}, "DB_URL"},
		{"empty key", map[string]string{"TRANSCRIPT_STORAGE_KEY": " "}, "TRANSCRIPT_STORAGE_KEY"},
		{"absolute file key", map[string]string{"TRANSCRIPT_STORAGE_KEY": "/var/lib/t.csv"}, "inside TRANSCRIPT_STORAGE_DIR"},
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"negative autosave", map[string]string{"TRANSCRIPT_STORAGE_AUTOSAVE_INTERVAL": "-1s"}, "AUTOSAVE_INTERVAL"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse(map[string]string{"HTTP_READ_TIMEOUT": "soon"})
	assert.ErrorContains(t, err, "parse environment")
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TRANSCRIPT_STORAGE_DRIVER=sqlite\nSQLITE_PATH=/tmp/t.db\n"), 0o600))

	// godotenv does not override variables that are already set.
	t.Setenv("TRANSCRIPT_STORAGE_DRIVER", "")
	require.NoError(t, os.Unsetenv("TRANSCRIPT_STORAGE_DRIVER"))
	t.Setenv("SQLITE_PATH", "/data/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/data/override.db", cfg.SQLite.Path)
	require.NoError(t, os.Unsetenv("TRANSCRIPT_STORAGE_DRIVER"))
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
