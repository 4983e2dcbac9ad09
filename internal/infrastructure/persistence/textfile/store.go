package textfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// DriverName identifies the text file backend.
const DriverName = "file"

// Store saves transcripts as text files. The storage key is a relative file
// path inside the base directory; keys that are absolute or climb out of it
// with ".." are rejected.
type Store struct {
	baseDir string
	perm    fs.FileMode
}

// NewStore creates a file store rooted at baseDir ("" means the working directory).
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir, perm: 0o644}
}

// Driver implements transcript.Repository.
func (s *Store) Driver() string {
	return DriverName
}

// Path returns the file a key resolves to, or ErrUnsafeStorageKey when the
// key does not stay inside the base directory.
func (s *Store) Path(key string) (string, error) {
	if key == "" {
		return "", shared.ErrEmptyStorageKey
	}
	if !filepath.IsLocal(key) {
		return "", shared.WrapError("storage", "Validate", shared.ErrUnsafeStorageKey,
			fmt.Sprintf("storage key %q must be a relative path inside the data directory", key), nil)
	}
	if s.baseDir == "" {
		return filepath.Clean(key), nil
	}
	return filepath.Join(s.baseDir, key), nil
}

// Save overwrites the file at key with the encoding of t.
// The content goes to a temporary file in the same directory first and is
// renamed over the target, so a failed save never leaves a truncated file.
func (s *Store) Save(ctx context.Context, key string, t *transcript.Transcript) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return saveError(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := Encode(tmp, t); err != nil {
		tmp.Close()
		return saveError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return saveError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return saveError(path, err)
	}
	if err := os.Chmod(tmpName, s.perm); err != nil {
		return saveError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return saveError(path, err)
	}
	return nil
}

// Load reads and decodes the file at key.
func (s *Store) Load(ctx context.Context, key string) (*transcript.Transcript, transcript.LoadStats, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, transcript.LoadStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, transcript.LoadStats{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, transcript.LoadStats{}, shared.WrapError("storage", "Load",
				shared.ErrTranscriptNotFound, fmt.Sprintf("no transcript at %s", path), err)
		}
		return nil, transcript.LoadStats{}, loadError(path, err)
	}
	defer f.Close()

	t, stats, err := Decode(f)
	if err != nil {
		return nil, stats, loadError(path, err)
	}
	return t, stats, nil
}

func saveError(path string, err error) error {
	return shared.WrapError("storage", "Save", shared.ErrTranscriptNotSaved,
		fmt.Sprintf("cannot write %s", path), err)
}

func loadError(path string, err error) error {
	return shared.WrapError("storage", "Load", shared.ErrTranscriptNotLoaded,
		fmt.Sprintf("cannot read %s", path), err)
}
