// Package workspace holds the live transcript shared by every command and
// query of the process.
package workspace

import (
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// Workspace guards the single in-memory transcript.
// Queries run under the read lock, commands under the write lock.
type Workspace struct {
	mu       sync.RWMutex
	current  *transcript.Transcript
	revision uint64
	// epoch tells revisions of different processes apart.
	epoch string
}

// New returns a workspace holding t, or an empty transcript when t is nil.
func New(t *transcript.Transcript) *Workspace {
	if t == nil {
		t = transcript.New()
	}
	return &Workspace{current: t, epoch: uuid.NewString()}
}

// View runs fn with read access to the transcript.
// fn must not mutate t or keep it after returning.
func (w *Workspace) View(fn func(t *transcript.Transcript) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(w.current)
}

// ViewVersion is View that also passes the Version of the transcript fn sees.
func (w *Workspace) ViewVersion(fn func(t *transcript.Transcript, version string) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(w.current, w.version())
}

// Update runs fn with exclusive access to the transcript.
// The revision advances only when fn succeeds.
func (w *Workspace) Update(fn func(t *transcript.Transcript) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := fn(w.current); err != nil {
		return err
	}
	w.revision++
	return nil
}

// Replace swaps in a new transcript, as after a successful load.
func (w *Workspace) Replace(t *transcript.Transcript) {
	if t == nil {
		t = transcript.New()
	}
	w.mu.Lock()
	w.current = t
	w.revision++
	w.mu.Unlock()
}

// Snapshot returns a deep copy of the transcript.
func (w *Workspace) Snapshot() *transcript.Transcript {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Clone()
}

// Revision counts successful mutations since creation.
func (w *Workspace) Revision() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.revision
}

// Version identifies the current revision of this workspace. Two workspaces
// never share a version, even at equal revisions.
func (w *Workspace) Version() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version()
}

func (w *Workspace) version() string {
	return w.epoch + ":" + strconv.FormatUint(w.revision, 10)
}
