package query

import (
	"context"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SEMESTER QUERY
// A semester with its courses in their current order.
// ══════════════════════════════════════════════════════════════════════════════

// GetSemesterQuery selects one semester. Persisted rows may carry an empty
// semester ID, so an empty ID is looked up like any other.
type GetSemesterQuery struct {
	SemesterID string
}

// CourseDTO is one course of a semester.
type CourseDTO struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	Grade   string `json:"grade"`

	// Points is nil for grades left out of the GPA (W, P).
	Points     *float64 `json:"points"`
	Excluded   bool     `json:"excluded"`
	KnownGrade bool     `json:"known_grade"`
}

// SemesterDTO is a semester with its courses.
type SemesterDTO struct {
	ID            string      `json:"id"`
	GPA           float64     `json:"gpa"`
	GPADisplay    float64     `json:"gpa_display"`
	Credits       int         `json:"credits"`
	GradedCredits int         `json:"graded_credits"`
	Courses       []CourseDTO `json:"courses"`
}

// GetSemesterHandler handles GetSemesterQuery.
type GetSemesterHandler struct {
	ws *workspace.Workspace
}

// NewGetSemesterHandler creates a new GetSemesterHandler.
func NewGetSemesterHandler(ws *workspace.Workspace) *GetSemesterHandler {
	return &GetSemesterHandler{ws: ws}
}

// Handle executes the query.
func (h *GetSemesterHandler) Handle(_ context.Context, q GetSemesterQuery) (*SemesterDTO, error) {
	var (
		sem   transcript.Semester
		found bool
	)
	_ = h.ws.View(func(t *transcript.Transcript) error {
		sem, found = t.FindSemester(q.SemesterID)
		return nil
	})
	if !found {
		return nil, shared.ErrSemesterNotFound
	}

	return toSemesterDTO(sem), nil
}

func toSemesterDTO(sem transcript.Semester) *SemesterDTO {
	dto := &SemesterDTO{
		ID:            sem.ID(),
		GPA:           sem.GPA(),
		GPADisplay:    transcript.RoundGPA(sem.GPA()),
		Credits:       sem.Credits(),
		GradedCredits: sem.GradedCredits(),
		Courses:       make([]CourseDTO, 0, sem.Len()),
	}
	for _, c := range sem.Courses() {
		cd := CourseDTO{
			Code:       c.Code,
			Name:       c.Name,
			Credits:    c.Credits,
			Grade:      c.Grade,
			Excluded:   c.IsExcluded(),
			KnownGrade: transcript.IsKnownGrade(c.Grade),
		}
		if !cd.Excluded {
			points := c.GradePoints()
			cd.Points = &points
		}
		dto.Courses = append(dto.Courses, cd)
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// GET SEMESTER GPA QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetSemesterGPAQuery selects one semester.
type GetSemesterGPAQuery struct {
	SemesterID string
}

// SemesterGPADTO carries the GPA of one semester.
type SemesterGPADTO struct {
	SemesterID string  `json:"semester_id"`
	GPA        float64 `json:"gpa"`
	GPADisplay float64 `json:"gpa_display"`
}

// GetSemesterGPAHandler handles GetSemesterGPAQuery.
type GetSemesterGPAHandler struct {
	ws *workspace.Workspace
}

// NewGetSemesterGPAHandler creates a new GetSemesterGPAHandler.
func NewGetSemesterGPAHandler(ws *workspace.Workspace) *GetSemesterGPAHandler {
	return &GetSemesterGPAHandler{ws: ws}
}

// Handle executes the query. An unknown semester yields ErrSemesterNotFound.
func (h *GetSemesterGPAHandler) Handle(_ context.Context, q GetSemesterGPAQuery) (*SemesterGPADTO, error) {
	var gpa float64
	err := h.ws.View(func(t *transcript.Transcript) error {
		var err error
		gpa, err = t.SemesterGPA(q.SemesterID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &SemesterGPADTO{
		SemesterID: q.SemesterID,
		GPA:        gpa,
		GPADisplay: transcript.RoundGPA(gpa),
	}, nil
}
