package command

import (
	"context"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD COURSE COMMAND
// Credits arrive as text, the way a user types them, and go through
// transcript.ParseCredits. Unknown grade symbols are accepted and count as 0.0;
// the result flags them so the caller can warn.
// ══════════════════════════════════════════════════════════════════════════════

// AddCourseCommand appends a course to an existing semester.
type AddCourseCommand struct {
	SemesterID string `validate:"required"`
	Code       string `validate:"required"`
	Name       string
	Credits    string
	Grade      string `validate:"required"`
}

// AddCourseResult describes the stored course.
type AddCourseResult struct {
	SemesterID  string
	Course      transcript.Course
	KnownGrade  bool
	SemesterGPA float64
}

// AddCourseHandler handles AddCourseCommand.
type AddCourseHandler struct {
	ws        *workspace.Workspace
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewAddCourseHandler creates a new AddCourseHandler.
func NewAddCourseHandler(ws *workspace.Workspace, publisher shared.EventPublisher, log *logger.Logger) *AddCourseHandler {
	return &AddCourseHandler{ws: ws, publisher: publisher, logger: orDiscard(log)}
}

// Handle executes the command.
func (h *AddCourseHandler) Handle(ctx context.Context, cmd AddCourseCommand) (*AddCourseResult, error) {
	log := logger.FromContextOr(ctx, h.logger).With(
		logger.SemesterID(cmd.SemesterID),
		logger.CourseCode(cmd.Code),
	)
	if err := validateCommand("AddCourse", cmd); err != nil {
		log.Warn("add course rejected", logger.Err(err))
		return nil, err
	}

	credits, err := transcript.ParseCredits(cmd.Credits)
	if err != nil {
		log.Warn("add course rejected", logger.Err(err))
		return nil, err
	}
	course, err := transcript.NewCourse(cmd.Code, cmd.Name, credits, cmd.Grade)
	if err != nil {
		log.Warn("add course rejected", logger.Err(err))
		return nil, err
	}

	res := &AddCourseResult{
		SemesterID: cmd.SemesterID,
		Course:     course,
		KnownGrade: transcript.IsKnownGrade(course.Grade),
	}
	err = h.ws.Update(func(t *transcript.Transcript) error {
		if err := t.AddCourse(cmd.SemesterID, course); err != nil {
			return err
		}
		res.SemesterGPA, _ = t.SemesterGPA(cmd.SemesterID)
		return nil
	})
	if err != nil {
		log.Warn("add course rejected", logger.Err(err))
		return nil, err
	}

	if !res.KnownGrade {
		log.Warn("unknown grade counted as 0.0", logger.String("grade", course.Grade))
	}
	log.Info("course added", logger.GPA(res.SemesterGPA))
	publish(h.publisher, h.logger, shared.NewTranscriptChangedEvent(shared.EventCourseAdded, cmd.SemesterID, cmd.Code, course.Grade))

	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE COURSE COMMAND
// Every course with the code is removed from the semester.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteCourseCommand removes a course from a semester.
type DeleteCourseCommand struct {
	SemesterID string `validate:"required"`
	Code       string `validate:"required"`
}

// DeleteCourseResult reports the semester after the removal.
type DeleteCourseResult struct {
	SemesterID  string
	Code        string
	SemesterGPA float64
}

// DeleteCourseHandler handles DeleteCourseCommand.
type DeleteCourseHandler struct {
	ws        *workspace.Workspace
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewDeleteCourseHandler creates a new DeleteCourseHandler.
func NewDeleteCourseHandler(ws *workspace.Workspace, publisher shared.EventPublisher, log *logger.Logger) *DeleteCourseHandler {
	return &DeleteCourseHandler{ws: ws, publisher: publisher, logger: orDiscard(log)}
}

// Handle executes the command. Missing semester or course yields a not-found error.
func (h *DeleteCourseHandler) Handle(ctx context.Context, cmd DeleteCourseCommand) (*DeleteCourseResult, error) {
	log := logger.FromContextOr(ctx, h.logger).With(
		logger.SemesterID(cmd.SemesterID),
		logger.CourseCode(cmd.Code),
	)
	if err := validateCommand("DeleteCourse", cmd); err != nil {
		return nil, err
	}

	res := &DeleteCourseResult{SemesterID: cmd.SemesterID, Code: cmd.Code}
	err := h.ws.Update(func(t *transcript.Transcript) error {
		if err := t.DeleteCourse(cmd.SemesterID, cmd.Code); err != nil {
			return err
		}
		res.SemesterGPA, _ = t.SemesterGPA(cmd.SemesterID)
		return nil
	})
	if err != nil {
		log.Warn("delete course rejected", logger.Err(err))
		return nil, err
	}

	log.Info("course deleted")
	publish(h.publisher, h.logger, shared.NewTranscriptChangedEvent(shared.EventCourseDeleted, cmd.SemesterID, cmd.Code, ""))

	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SORT COURSES COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SortCoursesCommand reorders the courses of one semester.
type SortCoursesCommand struct {
	SemesterID string              `validate:"required"`
	Mode       transcript.SortMode `validate:"required,oneof=by_code by_grade_desc"`
}

// SortCoursesResult lists the course codes in their new order.
type SortCoursesResult struct {
	SemesterID string
	Mode       transcript.SortMode
	Codes      []string
}

// SortCoursesHandler handles SortCoursesCommand.
type SortCoursesHandler struct {
	ws        *workspace.Workspace
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewSortCoursesHandler creates a new SortCoursesHandler.
func NewSortCoursesHandler(ws *workspace.Workspace, publisher shared.EventPublisher, log *logger.Logger) *SortCoursesHandler {
	return &SortCoursesHandler{ws: ws, publisher: publisher, logger: orDiscard(log)}
}

// Handle executes the command.
func (h *SortCoursesHandler) Handle(ctx context.Context, cmd SortCoursesCommand) (*SortCoursesResult, error) {
	log := logger.FromContextOr(ctx, h.logger).With(logger.SemesterID(cmd.SemesterID))
	if err := validateCommand("SortCourses", cmd); err != nil {
		return nil, err
	}

	res := &SortCoursesResult{SemesterID: cmd.SemesterID, Mode: cmd.Mode}
	err := h.ws.Update(func(t *transcript.Transcript) error {
		if err := t.SortSemester(cmd.SemesterID, cmd.Mode); err != nil {
			return err
		}
		sem, _ := t.FindSemester(cmd.SemesterID)
		for _, c := range sem.Courses() {
			res.Codes = append(res.Codes, c.Code)
		}
		return nil
	})
	if err != nil {
		log.Warn("sort rejected", logger.Err(err))
		return nil, err
	}

	log.Info("courses sorted", logger.String("mode", string(cmd.Mode)))
	publish(h.publisher, h.logger, shared.NewTranscriptChangedEvent(shared.EventCoursesSorted, cmd.SemesterID, "", string(cmd.Mode)))

	return res, nil
}
