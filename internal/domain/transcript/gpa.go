package transcript

import "math"

// weightedAverage is the grade-point average shared by semester and
// cumulative GPA: Σ(points × credits) / Σ credits over graded courses.
func weightedAverage(courses []Course) float64 {
	var totalPoints float64
	totalCredits := 0

	for _, c := range courses {
		points := c.GradePoints()
		if points < 0 {
			continue
		}
		totalPoints += points * float64(c.Credits)
		totalCredits += c.Credits
	}

	if totalCredits == 0 {
		return 0.0
	}
	return totalPoints / float64(totalCredits)
}

// latestAttempt is one entry of the retake map.
type latestAttempt struct {
	semesterID string
	course     Course
}

// latestAttempts keeps, for every course code, the attempt from the semester
// with the greatest ID. Within one semester the first occurrence wins.
func latestAttempts(semesters []Semester) []Course {
	byCode := make(map[string]latestAttempt)
	order := make([]string, 0)

	for _, sem := range semesters {
		for _, c := range sem.courses {
			current, seen := byCode[c.Code]
			if !seen {
				order = append(order, c.Code)
				byCode[c.Code] = latestAttempt{semesterID: sem.id, course: c}
				continue
			}
			if sem.id > current.semesterID {
				byCode[c.Code] = latestAttempt{semesterID: sem.id, course: c}
			}
		}
	}

	courses := make([]Course, 0, len(order))
	for _, code := range order {
		courses = append(courses, byCode[code].course)
	}
	return courses
}

// RoundGPA rounds a GPA to two decimals for display.
func RoundGPA(gpa float64) float64 {
	return math.Round(gpa*100) / 100
}
