package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/alem-hub/transcript-hub/internal/application/command"
	"github.com/alem-hub/transcript-hub/internal/application/query"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

// looseText accepts a JSON string or a bare JSON number and keeps its text,
// so credits can be sent either way and are parsed by the domain rules.
type looseText string

func (t *looseText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = looseText(s)
	default:
		*t = looseText(b)
	}
	return nil
}

type studentNameRequest struct {
	Name string `json:"name"`
}

type semesterRequest struct {
	ID string `json:"id"`
}

type courseRequest struct {
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	Credits looseText `json:"credits"`
	Grade   string    `json:"grade"`
}

type sortRequest struct {
	Mode string `json:"mode"`
}

type storageRequest struct {
	Key string `json:"key"`
}

// parseBody decodes a JSON body. An empty body leaves dst untouched.
func parseBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return success(c, fiber.StatusOK, "ok", fiber.Map{
		"driver": s.deps.StorageDriver,
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	dto, err := s.deps.ListSemesters.Handle(c.UserContext(), query.ListSemestersQuery{})
	if err != nil {
		return err
	}

	if dto.Fingerprint != "" {
		etag := `"` + dto.Fingerprint + `"`
		c.Set(fiber.HeaderETag, etag)
		if matchesETag(c.Get(fiber.HeaderIfNoneMatch), etag) {
			return c.SendStatus(fiber.StatusNotModified)
		}
	}
	return success(c, fiber.StatusOK, "transcript", dto)
}

func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

func (s *Server) handleSetStudentName(c *fiber.Ctx) error {
	var req studentNameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.deps.SetStudentName.Handle(c.UserContext(), command.SetStudentNameCommand{Name: req.Name})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "student name updated", fiber.Map{"student_name": res.StudentName})
}

func (s *Server) handleCumulativeGPA(c *fiber.Ctx) error {
	dto, err := s.deps.GetCumulativeGPA.Handle(c.UserContext(), query.GetCumulativeGPAQuery{})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "cumulative gpa", dto)
}

func (s *Server) handleSave(c *fiber.Ctx) error {
	req := storageRequest{Key: c.Query("key")}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Save.Handle(c.UserContext(), command.SaveTranscriptCommand{Key: req.Key})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "transcript saved", fiber.Map{
		"driver":    res.Driver,
		"key":       res.Key,
		"semesters": res.Semesters,
		"courses":   res.Courses,
	})
}

func (s *Server) handleLoad(c *fiber.Ctx) error {
	req := storageRequest{Key: c.Query("key")}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Load.Handle(c.UserContext(), command.LoadTranscriptCommand{Key: req.Key})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "transcript loaded", fiber.Map{
		"driver":       res.Driver,
		"key":          res.Key,
		"student_name": res.StudentName,
		"semesters":    res.Semesters,
		"courses":      res.Courses,
		"skipped_rows": res.SkippedRows,
	})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	dto, err := s.deps.Export.Handle(c.UserContext(), query.ExportTranscriptQuery{})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, dto.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, dto.Filename))
	return c.Send(dto.Data)
}

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTERS & COURSES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAddSemester(c *fiber.Ctx) error {
	var req semesterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.deps.AddSemester.Handle(c.UserContext(), command.AddSemesterCommand{SemesterID: req.ID})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, "semester added", fiber.Map{
		"id":             res.SemesterID,
		"semester_count": res.SemesterCount,
	})
}

func (s *Server) handleGetSemester(c *fiber.Ctx) error {
	dto, err := s.deps.GetSemester.Handle(c.UserContext(), query.GetSemesterQuery{SemesterID: c.Params("id")})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "semester", dto)
}

func (s *Server) handleDeleteSemester(c *fiber.Ctx) error {
	res, err := s.deps.DeleteSemester.Handle(c.UserContext(), command.DeleteSemesterCommand{SemesterID: c.Params("id")})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "semester deleted", fiber.Map{
		"id":              res.SemesterID,
		"courses_removed": res.CoursesRemoved,
		"semester_count":  res.SemesterCount,
	})
}

func (s *Server) handleSemesterGPA(c *fiber.Ctx) error {
	dto, err := s.deps.GetSemesterGPA.Handle(c.UserContext(), query.GetSemesterGPAQuery{SemesterID: c.Params("id")})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "semester gpa", dto)
}

func (s *Server) handleAddCourse(c *fiber.Ctx) error {
	var req courseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.deps.AddCourse.Handle(c.UserContext(), command.AddCourseCommand{
		SemesterID: c.Params("id"),
		Code:       req.Code,
		Name:       req.Name,
		Credits:    string(req.Credits),
		Grade:      req.Grade,
	})
	if err != nil {
		return err
	}

	message := "course added"
	if !res.KnownGrade {
		message = "course added; unknown grade counts as 0.0"
	}
	return success(c, fiber.StatusCreated, message, fiber.Map{
		"semester_id":  res.SemesterID,
		"code":         res.Course.Code,
		"name":         res.Course.Name,
		"credits":      res.Course.Credits,
		"grade":        res.Course.Grade,
		"known_grade":  res.KnownGrade,
		"semester_gpa": res.SemesterGPA,
		"gpa_display":  transcript.RoundGPA(res.SemesterGPA),
	})
}

func (s *Server) handleDeleteCourse(c *fiber.Ctx) error {
	res, err := s.deps.DeleteCourse.Handle(c.UserContext(), command.DeleteCourseCommand{
		SemesterID: c.Params("id"),
		Code:       c.Params("code"),
	})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "course deleted", fiber.Map{
		"semester_id":  res.SemesterID,
		"code":         res.Code,
		"semester_gpa": res.SemesterGPA,
	})
}

func (s *Server) handleSortCourses(c *fiber.Ctx) error {
	var req sortRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.deps.SortCourses.Handle(c.UserContext(), command.SortCoursesCommand{
		SemesterID: c.Params("id"),
		Mode:       transcript.SortMode(req.Mode),
	})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "courses sorted", fiber.Map{
		"semester_id": res.SemesterID,
		"mode":        res.Mode,
		"codes":       res.Codes,
	})
}
