package transcript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
)

// Course is a single attempt of a course inside a semester.
type Course struct {
	// Code identifies the course within its semester (e.g. "CSC101").
	// It is not unique across semesters: a retake reuses the code.
	Code string

	// Name is free text and may be empty.
	Name string

	// Credits weights the grade in every GPA average.
	Credits int

	// Grade is the grade symbol. It is not restricted to the grade table.
	Grade string
}

// NewCourse validates the fields the shell must supply and returns a Course.
// Code and grade are required; credits must be non-negative.
func NewCourse(code, name string, credits int, grade string) (Course, error) {
	if code == "" {
		return Course{}, shared.ErrEmptyCourseCode
	}
	if grade == "" {
		return Course{}, shared.ErrEmptyGrade
	}
	if credits < 0 {
		return Course{}, shared.ErrInvalidCredits
	}
	return Course{
		Code:    code,
		Name:    name,
		Credits: credits,
		Grade:   grade,
	}, nil
}

// GradePoints returns the point value of the course grade.
func (c Course) GradePoints() float64 {
	return GradePoints(c.Grade)
}

// IsExcluded reports whether the course is left out of GPA computations.
func (c Course) IsExcluded() bool {
	return c.GradePoints() < 0
}

// ParseCredits parses a credits field as written by a user or read from disk.
// An empty field means zero credits. Anything that is not a non-negative
// integer yields ErrInvalidCredits.
func ParseCredits(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	credits, err := strconv.Atoi(text)
	if err != nil {
		return 0, shared.WrapError("semester", "ParseCredits", shared.ErrInvalidCredits,
			fmt.Sprintf("invalid credits %q", text), err)
	}
	if credits < 0 {
		return 0, shared.ErrInvalidCredits
	}
	return credits, nil
}
