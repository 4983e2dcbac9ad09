// Package export renders transcripts as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// Sheet names of the workbook.
const (
	SheetCourses = "Courses"
	SheetSummary = "Summary"
)

// ContentType is the MIME type of the XLSX output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	courseHeaders  = []string{"Semester", "Code", "Name", "Credits", "Grade", "Points"}
	summaryHeaders = []string{"Semester", "Courses", "Credits", "GPA"}
)

// WriteXLSX writes t as a workbook with a course sheet and a GPA summary sheet.
// Excluded grades (W, P) leave the Points cell empty.
func WriteXLSX(w io.Writer, t *transcript.Transcript) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCourses); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summaryIdx, err := f.NewSheet(SheetSummary)
	if err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	if err := writeHeader(f, SheetCourses, courseHeaders); err != nil {
		return err
	}
	row := 2
	for _, sem := range t.Semesters() {
		for _, c := range sem.Courses() {
			values := []any{sem.ID(), c.Code, c.Name, c.Credits, c.Grade}
			if !c.IsExcluded() {
				values = append(values, c.GradePoints())
			}
			if err := setRow(f, SheetCourses, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetCellValue(SheetSummary, "A1", "Student"); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetSummary, "B1", t.StudentName()); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetSummary, "A2", "Cumulative GPA"); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetSummary, "B2", transcript.RoundGPA(t.CumulativeGPA())); err != nil {
		return err
	}

	headerRow := 4
	for i, h := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(SheetSummary, cell, h); err != nil {
			return err
		}
	}
	row = headerRow + 1
	for _, s := range t.Summaries() {
		if err := setRow(f, SheetSummary, row, []any{s.ID, s.CourseCount, s.Credits, transcript.RoundGPA(s.GPA)}); err != nil {
			return err
		}
		row++
	}

	f.SetActiveSheet(summaryIdx)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	return setRow(f, sheet, 1, values)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
