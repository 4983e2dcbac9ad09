package transcript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
)

func mustCourse(t *testing.T, code string, credits int, grade string) Course {
	t.Helper()
	c, err := NewCourse(code, "", credits, grade)
	require.NoError(t, err)
	return c
}

func TestGradePoints(t *testing.T) {
	assert.Equal(t, 4.0, GradePoints("A+"))
	assert.Equal(t, 3.7, GradePoints("A-"))
	assert.Equal(t, 0.7, GradePoints("D-"))
	assert.Equal(t, 0.0, GradePoints("F"))
	assert.Equal(t, ExcludedPoints, GradePoints("W"))
	assert.Equal(t, ExcludedPoints, GradePoints("P"))

	// Unknown symbols count as zero points, not as excluded.
	assert.Equal(t, 0.0, GradePoints("Z"))
	assert.False(t, IsKnownGrade("Z"))
	assert.False(t, IsExcludedGrade("Z"))
	assert.True(t, IsKnownGrade("B+"))
	assert.True(t, IsExcludedGrade("P"))
}

func TestNewCourse_Validation(t *testing.T) {
	_, err := NewCourse("", "Intro", 3, "A")
	assert.ErrorIs(t, err, shared.ErrEmptyCourseCode)

	_, err = NewCourse("CSC101", "Intro", 3, "")
	assert.ErrorIs(t, err, shared.ErrEmptyGrade)

	_, err = NewCourse("CSC101", "Intro", -1, "A")
	assert.ErrorIs(t, err, shared.ErrInvalidCredits)

	c, err := NewCourse("CSC101", "", 0, "W")
	require.NoError(t, err)
	assert.True(t, c.IsExcluded())
}

func TestParseCredits(t *testing.T) {
	n, err := ParseCredits("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = ParseCredits(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ParseCredits("abc")
	assert.ErrorIs(t, err, shared.ErrInvalidCredits)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	_, err = ParseCredits("-2")
	assert.ErrorIs(t, err, shared.ErrInvalidCredits)
}

func TestSemesterGPA(t *testing.T) {
	empty := NewSemester("202510")
	assert.Equal(t, 0.0, empty.GPA())

	excluded := NewSemester("202510",
		mustCourse(t, "ART100", 3, "W"),
		mustCourse(t, "PE100", 1, "P"),
	)
	assert.Equal(t, 0.0, excluded.GPA())
	assert.Equal(t, 4, excluded.Credits())
	assert.Equal(t, 0, excluded.GradedCredits())

	mixed := NewSemester("202510",
		mustCourse(t, "MAT101", 4, "A"),
		mustCourse(t, "PHY101", 2, "C"),
		mustCourse(t, "ART100", 3, "W"),
	)
	// (4*4 + 2*2) / 6
	assert.InDelta(t, 20.0/6.0, mixed.GPA(), 1e-9)
}

func TestSemester_WithdrawalDoesNotChangeGPA(t *testing.T) {
	s := NewSemester("202510", mustCourse(t, "MAT101", 3, "B"))
	before := s.GPA()

	s.AddCourse(mustCourse(t, "ART100", 5, "W"))
	s.AddCourse(mustCourse(t, "PE100", 2, "P"))

	assert.Equal(t, before, s.GPA())
}

func TestSemester_Sort(t *testing.T) {
	s := NewSemester("202510",
		mustCourse(t, "PHY101", 3, "W"),
		mustCourse(t, "MAT101", 3, "B"),
		mustCourse(t, "CSC101", 3, "A"),
		mustCourse(t, "BIO101", 3, "B"),
	)

	require.NoError(t, s.Sort(SortByCode))
	assert.Equal(t, []string{"BIO101", "CSC101", "MAT101", "PHY101"}, codes(s.Courses()))

	require.NoError(t, s.Sort(SortByGradeDesc))
	// Stable: BIO101 stays ahead of MAT101, excluded grade goes last.
	assert.Equal(t, []string{"CSC101", "BIO101", "MAT101", "PHY101"}, codes(s.Courses()))

	assert.False(t, SortMode("by_name").IsValid())
	assert.True(t, SortByCode.IsValid())
	assert.ErrorIs(t, s.Sort(SortMode("by_name")), shared.ErrUnknownSortMode)
	assert.Equal(t, []string{"CSC101", "BIO101", "MAT101", "PHY101"}, codes(s.Courses()), "unknown mode keeps the order")
}

func TestSemester_DeleteCourse(t *testing.T) {
	s := NewSemester("202510",
		mustCourse(t, "CSC101", 3, "A"),
		mustCourse(t, "MAT101", 3, "B"),
		mustCourse(t, "CSC101", 3, "C"),
	)

	assert.False(t, s.DeleteCourse("XYZ999"))
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.DeleteCourse("CSC101"))
	assert.Equal(t, []string{"MAT101"}, codes(s.Courses()))
}

func TestTranscript_Defaults(t *testing.T) {
	tr := New()
	assert.Equal(t, DefaultStudentName, tr.StudentName())
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, 0.0, tr.CumulativeGPA())

	tr.SetStudentName("Aigerim")
	assert.Equal(t, "Aigerim", tr.StudentName())

	tr.SetStudentName("")
	assert.Equal(t, DefaultStudentName, tr.StudentName())
}

func TestTranscript_AddSemester(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202520"))
	require.NoError(t, tr.AddSemester("202410"))
	require.NoError(t, tr.AddSemester("202510"))

	err := tr.AddSemester("202510")
	assert.ErrorIs(t, err, shared.ErrSemesterExists)
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Equal(t, 3, tr.Len())

	assert.ErrorIs(t, tr.AddSemester(""), shared.ErrEmptySemesterID)

	ids := make([]string, 0)
	for _, s := range tr.Semesters() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"202410", "202510", "202520"}, ids)
}

func TestTranscript_DeleteUnknownKeys(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "A")))

	err := tr.DeleteSemester("209910")
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, 1, tr.Len())

	err = tr.DeleteCourse("202510", "XYZ999")
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
	assert.Equal(t, 1, tr.CourseCount())

	err = tr.DeleteCourse("209910", "CSC101")
	assert.ErrorIs(t, err, shared.ErrSemesterNotFound)

	err = tr.AddCourse("209910", mustCourse(t, "CSC101", 3, "A"))
	assert.ErrorIs(t, err, shared.ErrSemesterNotFound)
	assert.Equal(t, 1, tr.CourseCount())

	require.NoError(t, tr.DeleteSemester("202510"))
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, 0, tr.CourseCount())
}

func TestTranscript_RetakeLatestAttemptWins(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddSemester("202520"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "B")))
	require.NoError(t, tr.AddCourse("202520", mustCourse(t, "CSC101", 3, "A")))

	assert.Equal(t, 4.0, tr.CumulativeGPA())

	gpa, err := tr.SemesterGPA("202510")
	require.NoError(t, err)
	assert.Equal(t, 3.0, gpa)

	gpa, err = tr.SemesterGPA("202520")
	require.NoError(t, err)
	assert.Equal(t, 4.0, gpa)

	_, err = tr.SemesterGPA("209910")
	assert.ErrorIs(t, err, shared.ErrSemesterNotFound)
}

func TestTranscript_RetakeIndependentOfInsertionOrder(t *testing.T) {
	tr := NewBuilder("Student").
		Course("202520", mustCourse(t, "CSC101", 3, "C")).
		Course("202510", mustCourse(t, "CSC101", 3, "A")).
		Course("202510", mustCourse(t, "MAT101", 3, "B")).
		Build()

	// CSC101 from 202520 (C=2.0) and MAT101 (B=3.0).
	assert.Equal(t, 2.5, tr.CumulativeGPA())
}

func TestTranscript_RetakeSameSemesterFirstWins(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "A")))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "F")))

	assert.Equal(t, 4.0, tr.CumulativeGPA())
	gpa, err := tr.SemesterGPA("202510")
	require.NoError(t, err)
	assert.Equal(t, 2.0, gpa)
}

func TestTranscript_RetakeWithWithdrawal(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddSemester("202520"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "B")))
	require.NoError(t, tr.AddCourse("202520", mustCourse(t, "CSC101", 3, "W")))

	// The latest attempt is a withdrawal, so nothing counts.
	assert.Equal(t, 0.0, tr.CumulativeGPA())
}

func TestTranscript_FindSemesterReturnsCopy(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "A")))

	s, ok := tr.FindSemester("202510")
	require.True(t, ok)
	s.AddCourse(mustCourse(t, "MAT101", 3, "F"))
	assert.Equal(t, 2, s.Len())

	stored, ok := tr.FindSemester("202510")
	require.True(t, ok)
	assert.Equal(t, 1, stored.Len())

	_, ok = tr.FindSemester("209910")
	assert.False(t, ok)
}

func TestTranscript_SortSemester(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "MAT101", 3, "B")))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "A")))

	require.NoError(t, tr.SortSemester("202510", SortByCode))
	s, _ := tr.FindSemester("202510")
	assert.Equal(t, []string{"CSC101", "MAT101"}, codes(s.Courses()))

	err := tr.SortSemester("209910", SortByCode)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestTranscript_Summaries(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202520"))
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "A")))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "ART100", 2, "W")))

	sums := tr.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, SemesterSummary{ID: "202510", CourseCount: 2, Credits: 5, GPA: 4.0}, sums[0])
	assert.Equal(t, SemesterSummary{ID: "202520"}, sums[1])
}

func TestTranscript_Clone(t *testing.T) {
	tr := New()
	tr.SetStudentName("Aigerim")
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "A")))

	cp := tr.Clone()
	require.NoError(t, cp.AddCourse("202510", mustCourse(t, "MAT101", 3, "F")))

	assert.Equal(t, 1, tr.CourseCount())
	assert.Equal(t, 2, cp.CourseCount())
	assert.Equal(t, "Aigerim", cp.StudentName())
}

func TestBuilder_KeepsEmptySemestersAndSorts(t *testing.T) {
	tr := NewBuilder("").
		Course("202520", mustCourse(t, "CSC201", 3, "A")).
		Semester("202410").
		Course("202510", mustCourse(t, "CSC101", 3, "B")).
		Course("202520", mustCourse(t, "MAT201", 3, "B")).
		Build()

	assert.Equal(t, "", tr.StudentName())
	sums := tr.Summaries()
	require.Len(t, sums, 3)
	assert.Equal(t, "202410", sums[0].ID)
	assert.Equal(t, "202510", sums[1].ID)
	assert.Equal(t, "202520", sums[2].ID)
	assert.Equal(t, 2, sums[2].CourseCount)
}

func TestRoundGPA(t *testing.T) {
	assert.Equal(t, 3.33, RoundGPA(10.0/3.0))
	assert.Equal(t, 2.67, RoundGPA(8.0/3.0))
	assert.Equal(t, 0.0, RoundGPA(0))
}

func TestNewSummary(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddSemester("202510"))
	require.NoError(t, tr.AddCourse("202510", mustCourse(t, "CSC101", 3, "B")))

	s := NewSummary(tr)
	assert.Equal(t, DefaultStudentName, s.StudentName)
	assert.Equal(t, 3.0, s.CumulativeGPA)
	assert.Len(t, s.Semesters, 1)
	assert.False(t, s.ComputedAt.IsZero())
}

func codes(courses []Course) []string {
	out := make([]string, len(courses))
	for i, c := range courses {
		out[i] = c.Code
	}
	return out
}
