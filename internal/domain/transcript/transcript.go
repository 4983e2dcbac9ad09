package transcript

import (
	"sort"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
)

// DefaultStudentName is shown until a student name is set.
const DefaultStudentName = "No Student Name Set"

// Transcript is the aggregate root: one student's semesters, sorted by ID.
//
// Semesters are never handed out by reference. Lookups return copies and
// every mutation goes through the transcript by semester ID.
type Transcript struct {
	studentName string
	semesters   []Semester
}

// New creates an empty transcript with the placeholder student name.
func New() *Transcript {
	return &Transcript{studentName: DefaultStudentName}
}

// SemesterSummary is a read-only line of the semester listing.
type SemesterSummary struct {
	ID          string  `json:"id"`
	CourseCount int     `json:"course_count"`
	Credits     int     `json:"credits"`
	GPA         float64 `json:"gpa"`
}

// StudentName returns the student name.
func (t *Transcript) StudentName() string {
	return t.studentName
}

// SetStudentName renames the student. An empty name resets the placeholder.
func (t *Transcript) SetStudentName(name string) {
	if name == "" {
		name = DefaultStudentName
	}
	t.studentName = name
}

// Len returns the number of semesters.
func (t *Transcript) Len() int {
	return len(t.semesters)
}

// CourseCount returns the number of courses across all semesters.
func (t *Transcript) CourseCount() int {
	total := 0
	for _, s := range t.semesters {
		total += s.Len()
	}
	return total
}

// Semesters returns copies of all semesters in ascending ID order.
func (t *Transcript) Semesters() []Semester {
	out := make([]Semester, len(t.semesters))
	for i, s := range t.semesters {
		out[i] = s.clone()
	}
	return out
}

// FindSemester returns a copy of the semester with the given ID.
func (t *Transcript) FindSemester(id string) (Semester, bool) {
	idx := t.indexOf(id)
	if idx < 0 {
		return Semester{}, false
	}
	return t.semesters[idx].clone(), true
}

// AddSemester inserts an empty semester and keeps the list sorted.
func (t *Transcript) AddSemester(id string) error {
	if id == "" {
		return shared.ErrEmptySemesterID
	}
	if t.indexOf(id) >= 0 {
		return shared.ErrSemesterExists
	}
	t.semesters = append(t.semesters, NewSemester(id))
	t.sortSemesters()
	return nil
}

// DeleteSemester removes the semester and all of its courses.
func (t *Transcript) DeleteSemester(id string) error {
	idx := t.indexOf(id)
	if idx < 0 {
		return shared.ErrSemesterNotFound
	}
	t.semesters = append(t.semesters[:idx], t.semesters[idx+1:]...)
	return nil
}

// AddCourse appends a course to an existing semester.
func (t *Transcript) AddCourse(semesterID string, c Course) error {
	idx := t.indexOf(semesterID)
	if idx < 0 {
		return shared.ErrSemesterNotFound
	}
	t.semesters[idx].AddCourse(c)
	return nil
}

// DeleteCourse removes every course with the given code from a semester.
func (t *Transcript) DeleteCourse(semesterID, code string) error {
	idx := t.indexOf(semesterID)
	if idx < 0 {
		return shared.ErrSemesterNotFound
	}
	if !t.semesters[idx].DeleteCourse(code) {
		return shared.ErrCourseNotFound
	}
	return nil
}

// SortSemester reorders the courses of a semester.
func (t *Transcript) SortSemester(semesterID string, mode SortMode) error {
	idx := t.indexOf(semesterID)
	if idx < 0 {
		return shared.ErrSemesterNotFound
	}
	return t.semesters[idx].Sort(mode)
}

// SemesterGPA returns the GPA of a single semester.
func (t *Transcript) SemesterGPA(semesterID string) (float64, error) {
	idx := t.indexOf(semesterID)
	if idx < 0 {
		return 0, shared.ErrSemesterNotFound
	}
	return t.semesters[idx].GPA(), nil
}

// CumulativeGPA returns the GPA over the whole transcript.
// When a course code appears in several semesters only the attempt from the
// semester with the greatest ID counts (latest attempt wins).
func (t *Transcript) CumulativeGPA() float64 {
	return weightedAverage(latestAttempts(t.semesters))
}

// Summaries lists every semester with its course count, credits and GPA.
func (t *Transcript) Summaries() []SemesterSummary {
	out := make([]SemesterSummary, 0, len(t.semesters))
	for _, s := range t.semesters {
		out = append(out, SemesterSummary{
			ID:          s.id,
			CourseCount: s.Len(),
			Credits:     s.Credits(),
			GPA:         s.GPA(),
		})
	}
	return out
}

// Clone returns a deep copy of the transcript.
func (t *Transcript) Clone() *Transcript {
	return &Transcript{
		studentName: t.studentName,
		semesters:   t.Semesters(),
	}
}

func (t *Transcript) indexOf(id string) int {
	for i := range t.semesters {
		if t.semesters[i].id == id {
			return i
		}
	}
	return -1
}

func (t *Transcript) sortSemesters() {
	sort.SliceStable(t.semesters, func(i, j int) bool {
		return t.semesters[i].id < t.semesters[j].id
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// Builder assembles a transcript row by row, as a persistence backend reads it.
// Rows are grouped by semester ID in first-encounter order; Build sorts them.
type Builder struct {
	t *Transcript
}

// NewBuilder starts a transcript with the given student name, taken verbatim.
func NewBuilder(studentName string) *Builder {
	return &Builder{t: &Transcript{studentName: studentName}}
}

// Semester makes sure a semester exists, even if it never receives a course.
func (b *Builder) Semester(id string) *Builder {
	if b.t.indexOf(id) < 0 {
		b.t.semesters = append(b.t.semesters, NewSemester(id))
	}
	return b
}

// Course appends a course to the named semester, creating it on first use.
func (b *Builder) Course(semesterID string, c Course) *Builder {
	idx := b.t.indexOf(semesterID)
	if idx < 0 {
		b.t.semesters = append(b.t.semesters, NewSemester(semesterID))
		idx = len(b.t.semesters) - 1
	}
	b.t.semesters[idx].AddCourse(c)
	return b
}

// Build returns the transcript with semesters sorted by ID.
// The builder must not be used afterwards.
func (b *Builder) Build() *Transcript {
	t := b.t
	b.t = nil
	t.sortSemesters()
	return t
}
