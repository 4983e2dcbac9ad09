// Package transcript holds the academic record of one student.
//
// The package defines:
//
//   - Entities: Transcript (aggregate root), Semester, Course
//   - The fixed grade-point table and the GPA rules built on it
//   - Repository and SummaryCache contracts implemented in infrastructure
//
// # GPA rules
//
// A semester GPA is Σ(points × credits) / Σ credits over its courses, where
// courses graded "W" or "P" are left out entirely. The cumulative GPA applies
// the same average to the latest attempt of every course code:
//
//	t := transcript.New()
//	_ = t.AddSemester("202510")
//	_ = t.AddSemester("202520")
//	_ = t.AddCourse("202510", transcript.Course{Code: "CSC101", Credits: 3, Grade: "B"})
//	_ = t.AddCourse("202520", transcript.Course{Code: "CSC101", Credits: 3, Grade: "A"})
//	t.CumulativeGPA() // 4.0
//
// # Ownership
//
// The transcript owns its semesters and every semester owns its courses.
// Nothing mutable escapes: FindSemester and Semesters return copies and all
// mutations are addressed by semester ID.
//
// The package depends on the standard library and domain/shared only.
package transcript
