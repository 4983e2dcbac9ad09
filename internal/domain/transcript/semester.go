package transcript

import (
	"sort"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
)

// SortMode selects how the courses of a semester are reordered.
type SortMode string

const (
	// SortByCode orders courses by code, ascending.
	SortByCode SortMode = "by_code"
	// SortByGradeDesc orders courses by grade points, best first.
	// Excluded grades end up last because their points are negative.
	SortByGradeDesc SortMode = "by_grade_desc"
)

// IsValid reports whether the mode is supported.
func (m SortMode) IsValid() bool {
	return m == SortByCode || m == SortByGradeDesc
}

// Semester owns an ordered list of courses.
// The ID is both its key inside a transcript and its ordering key.
type Semester struct {
	id      string
	courses []Course
}

// NewSemester creates a semester holding a copy of the given courses.
func NewSemester(id string, courses ...Course) Semester {
	s := Semester{id: id}
	if len(courses) > 0 {
		s.courses = append(make([]Course, 0, len(courses)), courses...)
	}
	return s
}

// ID returns the semester identifier (e.g. "202510").
func (s Semester) ID() string {
	return s.id
}

// Courses returns the courses in their current order.
// The returned slice is a copy.
func (s Semester) Courses() []Course {
	out := make([]Course, len(s.courses))
	copy(out, s.courses)
	return out
}

// Len returns the number of courses.
func (s Semester) Len() int {
	return len(s.courses)
}

// Credits returns the sum of credits of every course, excluded grades included.
func (s Semester) Credits() int {
	total := 0
	for _, c := range s.courses {
		total += c.Credits
	}
	return total
}

// GradedCredits returns the credits that count towards the GPA.
func (s Semester) GradedCredits() int {
	total := 0
	for _, c := range s.courses {
		if !c.IsExcluded() {
			total += c.Credits
		}
	}
	return total
}

// GPA returns the credit-weighted grade-point average of the semester.
// Courses with an excluded grade count in neither numerator nor denominator.
// An empty semester, or one with no graded credits, has a GPA of 0.
func (s Semester) GPA() float64 {
	return weightedAverage(s.courses)
}

// clone returns a deep copy so callers never share the course slice.
func (s Semester) clone() Semester {
	return NewSemester(s.id, s.courses...)
}

// AddCourse appends a course, keeping insertion order.
func (s *Semester) AddCourse(c Course) {
	s.courses = append(s.courses, c)
}

// DeleteCourse removes every course with the given code.
// It returns false and leaves the semester untouched when none matched.
func (s *Semester) DeleteCourse(code string) bool {
	kept := s.courses[:0]
	removed := false
	for _, c := range s.courses {
		if c.Code == code {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	// Clear the tail so dropped courses are not retained by the backing array.
	for i := len(kept); i < len(s.courses); i++ {
		s.courses[i] = Course{}
	}
	s.courses = kept
	return removed
}

// SortByCourseCode stably orders courses by code, ascending.
func (s *Semester) SortByCourseCode() {
	sort.SliceStable(s.courses, func(i, j int) bool {
		return s.courses[i].Code < s.courses[j].Code
	})
}

// SortByGradeDescending stably orders courses by grade points, best first.
func (s *Semester) SortByGradeDescending() {
	sort.SliceStable(s.courses, func(i, j int) bool {
		return s.courses[i].GradePoints() > s.courses[j].GradePoints()
	})
}

// Sort applies the given sort mode.
func (s *Semester) Sort(mode SortMode) error {
	if !mode.IsValid() {
		return shared.ErrUnknownSortMode
	}
	if mode == SortByCode {
		s.SortByCourseCode()
	} else {
		s.SortByGradeDescending()
	}
	return nil
}
