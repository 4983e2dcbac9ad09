package transcript

// ExcludedPoints is the sentinel grade-point value for symbols whose credits
// are left out of every GPA computation (withdrawal, pass/fail).
const ExcludedPoints = -1.0

// gradePoints is the fixed symbol table. It is built once at package
// initialisation and never written afterwards.
var gradePoints = map[string]float64{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"D-": 0.7,
	"F":  0.0,
	"W":  ExcludedPoints,
	"P":  ExcludedPoints,
}

// GradePoints returns the point value of a grade symbol.
// Symbols missing from the table resolve to 0.0, the same value as "F".
func GradePoints(symbol string) float64 {
	if points, ok := gradePoints[symbol]; ok {
		return points
	}
	return 0.0
}

// IsKnownGrade reports whether the symbol is present in the grade table.
// Unknown symbols are still accepted everywhere; callers use this to flag them.
func IsKnownGrade(symbol string) bool {
	_, ok := gradePoints[symbol]
	return ok
}

// IsExcludedGrade reports whether the symbol is left out of GPA computations.
func IsExcludedGrade(symbol string) bool {
	return GradePoints(symbol) < 0
}
