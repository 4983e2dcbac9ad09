// Package eventhandler contains the subscribers of transcript events.
package eventhandler

import (
	"context"
	"time"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// ChangeEvents lists every event after which the transcript content differs.
// A save does not change the content, so it is not listed.
var ChangeEvents = []shared.EventType{
	shared.EventStudentRenamed,
	shared.EventSemesterAdded,
	shared.EventSemesterDeleted,
	shared.EventCourseAdded,
	shared.EventCourseDeleted,
	shared.EventCoursesSorted,
	shared.EventTranscriptLoaded,
}

// ═══════════════════════════════════════════════════════════════════════════
// ON TRANSCRIPT CHANGED HANDLER
// Drops the cached summary so the next overview query recomputes it.
// ═══════════════════════════════════════════════════════════════════════════

// OnTranscriptChangedHandler invalidates the summary cache.
type OnTranscriptChangedHandler struct {
	cache   transcript.SummaryCache
	logger  *logger.Logger
	timeout time.Duration
}

// NewOnTranscriptChangedHandler creates a new handler.
func NewOnTranscriptChangedHandler(cache transcript.SummaryCache, log *logger.Logger) *OnTranscriptChangedHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &OnTranscriptChangedHandler{
		cache:   cache,
		logger:  log.With(logger.Component("on_transcript_changed")),
		timeout: 2 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnTranscriptChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Error("failed to invalidate summary cache",
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
		return err
	}

	h.logger.Debug("summary cache invalidated", logger.EventType(string(event.EventType())))
	return nil
}

// Register subscribes the handler to every change event.
func (h *OnTranscriptChangedHandler) Register(bus shared.EventSubscriber) error {
	for _, et := range ChangeEvents {
		if err := bus.Subscribe(et, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
