package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/textfile"
)

// DriverName identifies the Redis backend.
const DriverName = "redis"

// Hash fields of a transcript snapshot.
const (
	fieldContent     = "content"
	fieldSemesters   = "semesters"
	fieldFingerprint = "fingerprint"
	fieldSavedAt     = "saved_at"
)

// TranscriptStore keeps each transcript in one hash: the text encoding plus
// the semester list, so semesters without courses survive a round trip.
type TranscriptStore struct {
	cache *Cache
}

// NewTranscriptStore creates a TranscriptStore.
func NewTranscriptStore(cache *Cache) *TranscriptStore {
	return &TranscriptStore{cache: cache}
}

// Driver implements transcript.Repository.
func (s *TranscriptStore) Driver() string {
	return DriverName
}

// Save replaces the snapshot under key atomically.
func (s *TranscriptStore) Save(ctx context.Context, key string, t *transcript.Transcript) error {
	if key == "" {
		return shared.ErrEmptyStorageKey
	}

	ids := make([]string, 0, t.Len())
	for _, sem := range t.Semesters() {
		ids = append(ids, sem.ID())
	}
	semesters, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	redisKey := TranscriptKey(key)
	_, err = s.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey,
			fieldContent, textfile.Marshal(t),
			fieldSemesters, semesters,
			fieldFingerprint, textfile.Fingerprint(t),
			fieldSavedAt, time.Now().UTC().Format(time.RFC3339),
		)
		return nil
	})
	if err != nil {
		return shared.WrapError("storage", "Save", shared.ErrTranscriptNotSaved,
			fmt.Sprintf("cannot save transcript %q", key), err)
	}
	return nil
}

// Load reads the snapshot under key.
func (s *TranscriptStore) Load(ctx context.Context, key string) (*transcript.Transcript, transcript.LoadStats, error) {
	if key == "" {
		return nil, transcript.LoadStats{}, shared.ErrEmptyStorageKey
	}

	fields, err := s.cache.Client().HGetAll(ctx, TranscriptKey(key)).Result()
	if err != nil {
		return nil, transcript.LoadStats{}, loadError(key, err)
	}
	content, ok := fields[fieldContent]
	if !ok {
		return nil, transcript.LoadStats{}, shared.WrapError("storage", "Load", shared.ErrTranscriptNotFound,
			fmt.Sprintf("no transcript stored under %q", key), ErrCacheMiss)
	}

	t, stats, err := textfile.Unmarshal([]byte(content))
	if err != nil {
		return nil, stats, loadError(key, err)
	}

	var ids []string
	if raw := fields[fieldSemesters]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, stats, loadError(key, fmt.Errorf("%w: %v", ErrCacheSerialization, err))
		}
	}
	for _, id := range ids {
		if _, found := t.FindSemester(id); !found && id != "" {
			_ = t.AddSemester(id)
		}
	}

	return t, stats, nil
}

// Fingerprint returns the stored fingerprint under key, or ErrCacheMiss.
func (s *TranscriptStore) Fingerprint(ctx context.Context, key string) (string, error) {
	fp, err := s.cache.Client().HGet(ctx, TranscriptKey(key), fieldFingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return fp, err
}

func loadError(key string, err error) error {
	return shared.WrapError("storage", "Load", shared.ErrTranscriptNotLoaded,
		fmt.Sprintf("cannot load transcript %q", key), err)
}
