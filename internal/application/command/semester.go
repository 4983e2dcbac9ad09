package command

import (
	"context"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET STUDENT NAME COMMAND
// An empty name resets the transcript to the placeholder name.
// ══════════════════════════════════════════════════════════════════════════════

// SetStudentNameCommand renames the student of the live transcript.
type SetStudentNameCommand struct {
	Name string
}

// SetStudentNameResult carries the name actually stored.
type SetStudentNameResult struct {
	StudentName string
}

// SetStudentNameHandler handles SetStudentNameCommand.
type SetStudentNameHandler struct {
	ws        *workspace.Workspace
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewSetStudentNameHandler creates a new SetStudentNameHandler.
func NewSetStudentNameHandler(ws *workspace.Workspace, publisher shared.EventPublisher, log *logger.Logger) *SetStudentNameHandler {
	return &SetStudentNameHandler{ws: ws, publisher: publisher, logger: orDiscard(log)}
}

// Handle executes the command.
func (h *SetStudentNameHandler) Handle(ctx context.Context, cmd SetStudentNameCommand) (*SetStudentNameResult, error) {
	if err := validateCommand("SetStudentName", cmd); err != nil {
		return nil, err
	}

	var name string
	_ = h.ws.Update(func(t *transcript.Transcript) error {
		t.SetStudentName(cmd.Name)
		name = t.StudentName()
		return nil
	})

	logger.FromContextOr(ctx, h.logger).Info("student renamed", logger.String("student_name", name))
	publish(h.publisher, h.logger, shared.NewTranscriptChangedEvent(shared.EventStudentRenamed, "", "", name))

	return &SetStudentNameResult{StudentName: name}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADD SEMESTER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AddSemesterCommand creates an empty semester.
type AddSemesterCommand struct {
	SemesterID string `validate:"required"`
}

// AddSemesterResult describes the semester that was created.
type AddSemesterResult struct {
	SemesterID    string
	SemesterCount int
}

// AddSemesterHandler handles AddSemesterCommand.
type AddSemesterHandler struct {
	ws        *workspace.Workspace
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewAddSemesterHandler creates a new AddSemesterHandler.
func NewAddSemesterHandler(ws *workspace.Workspace, publisher shared.EventPublisher, log *logger.Logger) *AddSemesterHandler {
	return &AddSemesterHandler{ws: ws, publisher: publisher, logger: orDiscard(log)}
}

// Handle executes the command. A duplicate ID yields ErrSemesterExists and
// leaves the transcript unchanged.
func (h *AddSemesterHandler) Handle(ctx context.Context, cmd AddSemesterCommand) (*AddSemesterResult, error) {
	log := logger.FromContextOr(ctx, h.logger).With(logger.SemesterID(cmd.SemesterID))
	if err := validateCommand("AddSemester", cmd); err != nil {
		log.Warn("add semester rejected", logger.Err(err))
		return nil, err
	}

	var count int
	err := h.ws.Update(func(t *transcript.Transcript) error {
		if err := t.AddSemester(cmd.SemesterID); err != nil {
			return err
		}
		count = t.Len()
		return nil
	})
	if err != nil {
		log.Warn("add semester rejected", logger.Err(err))
		return nil, err
	}

	log.Info("semester added")
	publish(h.publisher, h.logger, shared.NewTranscriptChangedEvent(shared.EventSemesterAdded, cmd.SemesterID, "", ""))

	return &AddSemesterResult{SemesterID: cmd.SemesterID, SemesterCount: count}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE SEMESTER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteSemesterCommand removes a semester with all of its courses.
type DeleteSemesterCommand struct {
	SemesterID string `validate:"required"`
}

// DeleteSemesterResult reports what was removed.
type DeleteSemesterResult struct {
	SemesterID     string
	CoursesRemoved int
	SemesterCount  int
}

// DeleteSemesterHandler handles DeleteSemesterCommand.
type DeleteSemesterHandler struct {
	ws        *workspace.Workspace
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewDeleteSemesterHandler creates a new DeleteSemesterHandler.
func NewDeleteSemesterHandler(ws *workspace.Workspace, publisher shared.EventPublisher, log *logger.Logger) *DeleteSemesterHandler {
	return &DeleteSemesterHandler{ws: ws, publisher: publisher, logger: orDiscard(log)}
}

// Handle executes the command. An unknown ID yields ErrSemesterNotFound.
func (h *DeleteSemesterHandler) Handle(ctx context.Context, cmd DeleteSemesterCommand) (*DeleteSemesterResult, error) {
	log := logger.FromContextOr(ctx, h.logger).With(logger.SemesterID(cmd.SemesterID))
	if err := validateCommand("DeleteSemester", cmd); err != nil {
		return nil, err
	}

	res := &DeleteSemesterResult{SemesterID: cmd.SemesterID}
	err := h.ws.Update(func(t *transcript.Transcript) error {
		sem, ok := t.FindSemester(cmd.SemesterID)
		if !ok {
			return shared.ErrSemesterNotFound
		}
		if err := t.DeleteSemester(cmd.SemesterID); err != nil {
			return err
		}
		res.CoursesRemoved = sem.Len()
		res.SemesterCount = t.Len()
		return nil
	})
	if err != nil {
		log.Warn("delete semester rejected", logger.Err(err))
		return nil, err
	}

	log.Info("semester deleted", logger.Int("courses_removed", res.CoursesRemoved))
	publish(h.publisher, h.logger, shared.NewTranscriptChangedEvent(shared.EventSemesterDeleted, cmd.SemesterID, "", ""))

	return res, nil
}
