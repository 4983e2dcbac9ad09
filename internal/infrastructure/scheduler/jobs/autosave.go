// Package jobs contains the scheduled jobs of transcriptd.
package jobs

import (
	"context"
	"sync"

	"github.com/alem-hub/transcript-hub/internal/application/command"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// AutosaveJobName is the scheduler name of the autosave job.
const AutosaveJobName = "autosave_transcript"

// RevisionSource reports how many successful changes the live transcript has seen.
type RevisionSource interface {
	Revision() uint64
}

// Saver writes the live transcript under the default key.
type Saver interface {
	Handle(ctx context.Context, cmd command.SaveTranscriptCommand) (*command.SaveTranscriptResult, error)
}

// AutosaveJob saves the transcript when it changed since the last save made
// by this job. Saves made through the API do not reset its revision mark.
type AutosaveJob struct {
	source RevisionSource
	saver  Saver
	logger *logger.Logger

	mu        sync.Mutex
	lastSaved uint64
}

// NewAutosaveJob creates the job. The current revision counts as saved, so a
// transcript loaded at startup is not written back unchanged.
func NewAutosaveJob(source RevisionSource, saver Saver, log *logger.Logger) *AutosaveJob {
	if log == nil {
		log = logger.Discard()
	}
	return &AutosaveJob{
		source:    source,
		saver:     saver,
		logger:    log.With(logger.Component("autosave")),
		lastSaved: source.Revision(),
	}
}

func (j *AutosaveJob) Name() string { return AutosaveJobName }

func (j *AutosaveJob) Description() string {
	return "saves the live transcript under the default key when it changed"
}

// Run executes one autosave pass.
func (j *AutosaveJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rev := j.source.Revision()
	if rev == j.lastSaved {
		return nil
	}

	res, err := j.saver.Handle(ctx, command.SaveTranscriptCommand{})
	if err != nil {
		return err
	}
	j.lastSaved = rev

	j.logger.Info("transcript autosaved",
		logger.Driver(res.Driver),
		logger.StorageKey(res.Key),
		logger.Int64("revision", int64(rev)),
	)
	return nil
}

// Pending reports whether there are changes the job has not saved yet.
func (j *AutosaveJob) Pending() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.source.Revision() != j.lastSaved
}
