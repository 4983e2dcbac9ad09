package command

import (
	"context"
	"time"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE / LOAD TRANSCRIPT COMMANDS
// Both work on whole transcripts. Save writes a snapshot taken under the read
// lock, so concurrent edits never produce a half-written file. A failed load
// leaves the live transcript exactly as it was.
// ══════════════════════════════════════════════════════════════════════════════

// SaveTranscriptCommand persists the live transcript.
type SaveTranscriptCommand struct {
	// Key is the storage key (a path for the file driver).
	// Empty means the configured default key.
	Key string `validate:"max=1024"`
}

// SaveTranscriptResult describes what was written.
type SaveTranscriptResult struct {
	Driver    string
	Key       string
	Semesters int
	Courses   int
	Duration  time.Duration
}

// SaveTranscriptHandler handles SaveTranscriptCommand.
type SaveTranscriptHandler struct {
	ws         *workspace.Workspace
	repo       transcript.Repository
	defaultKey string
	publisher  shared.EventPublisher
	logger     *logger.Logger
}

// NewSaveTranscriptHandler creates a new SaveTranscriptHandler.
func NewSaveTranscriptHandler(
	ws *workspace.Workspace,
	repo transcript.Repository,
	defaultKey string,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SaveTranscriptHandler {
	return &SaveTranscriptHandler{
		ws:         ws,
		repo:       repo,
		defaultKey: defaultKey,
		publisher:  publisher,
		logger:     orDiscard(log),
	}
}

// Handle executes the command.
func (h *SaveTranscriptHandler) Handle(ctx context.Context, cmd SaveTranscriptCommand) (*SaveTranscriptResult, error) {
	if err := validateCommand("SaveTranscript", cmd); err != nil {
		return nil, err
	}
	key := cmd.Key
	if key == "" {
		key = h.defaultKey
	}
	log := logger.FromContextOr(ctx, h.logger).With(
		logger.Driver(h.repo.Driver()),
		logger.StorageKey(key),
	)

	snapshot := h.ws.Snapshot()
	start := time.Now()
	if err := h.repo.Save(ctx, key, snapshot); err != nil {
		log.Error("save failed", logger.Err(err))
		return nil, err
	}

	res := &SaveTranscriptResult{
		Driver:    h.repo.Driver(),
		Key:       key,
		Semesters: snapshot.Len(),
		Courses:   snapshot.CourseCount(),
		Duration:  time.Since(start),
	}
	log.Info("transcript saved",
		logger.Int("semesters", res.Semesters),
		logger.Int("courses", res.Courses),
		logger.Latency(res.Duration),
	)
	publish(h.publisher, h.logger, shared.NewTranscriptPersistedEvent(
		shared.EventTranscriptSaved, res.Driver, key, res.Semesters, res.Courses, 0,
	))

	return res, nil
}

// LoadTranscriptCommand replaces the live transcript with a stored one.
type LoadTranscriptCommand struct {
	// Key is the storage key. Empty means the configured default key.
	Key string `validate:"max=1024"`
}

// LoadTranscriptResult describes what was read.
type LoadTranscriptResult struct {
	Driver      string
	Key         string
	StudentName string
	Semesters   int
	Courses     int
	// SkippedRows counts malformed persisted rows that were dropped.
	SkippedRows int
}

// LoadTranscriptHandler handles LoadTranscriptCommand.
type LoadTranscriptHandler struct {
	ws         *workspace.Workspace
	repo       transcript.Repository
	defaultKey string
	publisher  shared.EventPublisher
	logger     *logger.Logger
}

// NewLoadTranscriptHandler creates a new LoadTranscriptHandler.
func NewLoadTranscriptHandler(
	ws *workspace.Workspace,
	repo transcript.Repository,
	defaultKey string,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *LoadTranscriptHandler {
	return &LoadTranscriptHandler{
		ws:         ws,
		repo:       repo,
		defaultKey: defaultKey,
		publisher:  publisher,
		logger:     orDiscard(log),
	}
}

// Handle executes the command.
func (h *LoadTranscriptHandler) Handle(ctx context.Context, cmd LoadTranscriptCommand) (*LoadTranscriptResult, error) {
	if err := validateCommand("LoadTranscript", cmd); err != nil {
		return nil, err
	}
	key := cmd.Key
	if key == "" {
		key = h.defaultKey
	}
	log := logger.FromContextOr(ctx, h.logger).With(
		logger.Driver(h.repo.Driver()),
		logger.StorageKey(key),
	)

	loaded, stats, err := h.repo.Load(ctx, key)
	if err != nil {
		if shared.IsNotFound(err) {
			log.Warn("nothing stored under key", logger.Err(err))
		} else {
			log.Error("load failed, keeping current transcript", logger.Err(err))
		}
		return nil, err
	}

	res := &LoadTranscriptResult{
		Driver:      h.repo.Driver(),
		Key:         key,
		StudentName: loaded.StudentName(),
		Semesters:   loaded.Len(),
		Courses:     loaded.CourseCount(),
		SkippedRows: stats.Skipped,
	}
	h.ws.Replace(loaded)

	if stats.Skipped > 0 {
		log.Warn("malformed rows dropped", logger.Int("skipped_rows", stats.Skipped))
	}
	log.Info("transcript loaded",
		logger.Int("semesters", res.Semesters),
		logger.Int("courses", res.Courses),
	)
	publish(h.publisher, h.logger, shared.NewTranscriptPersistedEvent(
		shared.EventTranscriptLoaded, res.Driver, key, res.Semesters, res.Courses, stats.Skipped,
	))

	return res, nil
}
