package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/transcript-hub/internal/application/command"
	"github.com/alem-hub/transcript-hub/internal/application/query"
	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/export"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/textfile"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ws := workspace.New(nil)
	store := textfile.NewStore(t.TempDir())
	log := logger.Discard()

	deps := Dependencies{
		SetStudentName: command.NewSetStudentNameHandler(ws, nil, log),
		AddSemester:    command.NewAddSemesterHandler(ws, nil, log),
		DeleteSemester: command.NewDeleteSemesterHandler(ws, nil, log),
		AddCourse:      command.NewAddCourseHandler(ws, nil, log),
		DeleteCourse:   command.NewDeleteCourseHandler(ws, nil, log),
		SortCourses:    command.NewSortCoursesHandler(ws, nil, log),
		Save:           command.NewSaveTranscriptHandler(ws, store, "transcript.csv", nil, log),
		Load:           command.NewLoadTranscriptHandler(ws, store, "transcript.csv", nil, log),

		ListSemesters:    query.NewListSemestersHandler(ws, nil, textfile.Fingerprint, log),
		GetSemester:      query.NewGetSemesterHandler(ws),
		GetSemesterGPA:   query.NewGetSemesterGPAHandler(ws),
		GetCumulativeGPA: query.NewGetCumulativeGPAHandler(ws),
		Export:           query.NewExportTranscriptHandler(ws, export.WriteXLSX, export.ContentType, "xlsx", log),

		StorageDriver: store.Driver(),
		Logger:        log,
	}
	return NewServer(DefaultConfig(), deps)
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) (*nethttp.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, env := do(t, s, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", env.Status)
	assert.Contains(t, string(env.Data), `"driver":"file"`)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	resp, _ := do(t, s, fiber.MethodGet, "/health", "", HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", resp.Header.Get(HeaderRequestID))
}

func TestSemesterLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp, env := do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "semester added", env.Message)

	resp, env = do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "semester already exists", env.Message)

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":""}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, fiber.MethodDelete, "/api/v1/semesters/202510", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = do(t, s, fiber.MethodDelete, "/api/v1/semesters/202510", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "semester not found", env.Message)
}

func TestCourses(t *testing.T) {
	s := newTestServer(t)
	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)
	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202520"}`)

	resp, env := do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses",
		`{"code":"CSC101","name":"Intro","credits":3,"grade":"B"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"known_grade":true`)

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/semesters/202520/courses",
		`{"code":"CSC101","name":"Intro","credits":"3","grade":"A"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, env = do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses",
		`{"code":"ART100","credits":"2","grade":"Q"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Contains(t, env.Message, "unknown grade")

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses",
		`{"code":"MAT101","credits":"three","grade":"A"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/semesters/209910/courses",
		`{"code":"MAT101","credits":"3","grade":"A"}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, env = do(t, s, fiber.MethodGet, "/api/v1/gpa", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var gpa query.CumulativeGPADTO
	require.NoError(t, json.Unmarshal(env.Data, &gpa))
	// CSC101 counts once (A from 202520); ART100 with unknown grade Q counts 0.0.
	assert.InDelta(t, 12.0/5.0, gpa.GPA, 1e-9)
	assert.Equal(t, 2.4, gpa.GPADisplay)

	resp, env = do(t, s, fiber.MethodGet, "/api/v1/semesters/202510/gpa", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var semGPA query.SemesterGPADTO
	require.NoError(t, json.Unmarshal(env.Data, &semGPA))
	assert.InDelta(t, 9.0/5.0, semGPA.GPA, 1e-9)

	resp, _ = do(t, s, fiber.MethodDelete, "/api/v1/semesters/202510/courses/ART100", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = do(t, s, fiber.MethodDelete, "/api/v1/semesters/202510/courses/ART100", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSortAndGetSemester(t *testing.T) {
	s := newTestServer(t)
	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)
	do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses", `{"code":"MAT101","credits":3,"grade":"C"}`)
	do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses", `{"code":"ART100","credits":3,"grade":"P"}`)
	do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses", `{"code":"CSC101","credits":3,"grade":"A-"}`)

	resp, env := do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/sort", `{"mode":"by_grade_desc"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"codes":["CSC101","MAT101","ART100"]`)

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/sort", `{"mode":"random"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, env = do(t, s, fiber.MethodGet, "/api/v1/semesters/202510", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var sem query.SemesterDTO
	require.NoError(t, json.Unmarshal(env.Data, &sem))
	require.Len(t, sem.Courses, 3)
	assert.Equal(t, "CSC101", sem.Courses[0].Code)
	assert.Nil(t, sem.Courses[2].Points)
	assert.Equal(t, 6, sem.GradedCredits)

	resp, _ = do(t, s, fiber.MethodGet, "/api/v1/semesters/209910", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTranscriptETag(t *testing.T) {
	s := newTestServer(t)
	do(t, s, fiber.MethodPut, "/api/v1/transcript/student-name", `{"name":"Aigerim"}`)

	resp, env := do(t, s, fiber.MethodGet, "/api/v1/transcript", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	etag := resp.Header.Get(fiber.HeaderETag)
	require.NotEmpty(t, etag)
	var dto query.TranscriptDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "Aigerim", dto.StudentName)

	resp, _ = do(t, s, fiber.MethodGet, "/api/v1/transcript", "", fiber.HeaderIfNoneMatch, etag)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)

	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)
	resp, _ = do(t, s, fiber.MethodGet, "/api/v1/transcript", "", fiber.HeaderIfNoneMatch, etag)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEqual(t, etag, resp.Header.Get(fiber.HeaderETag))
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestServer(t)
	do(t, s, fiber.MethodPut, "/api/v1/transcript/student-name", `{"name":"Aigerim"}`)
	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)
	do(t, s, fiber.MethodPost, "/api/v1/semesters/202510/courses", `{"code":"CSC101","credits":3,"grade":"A"}`)

	resp, env := do(t, s, fiber.MethodPost, "/api/v1/transcript/save", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"key":"transcript.csv"`)

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/transcript/save", `{"key":"backup.csv"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	do(t, s, fiber.MethodDelete, "/api/v1/semesters/202510", "")

	resp, _ = do(t, s, fiber.MethodPost, "/api/v1/transcript/load?key=missing.csv", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, env = do(t, s, fiber.MethodPost, "/api/v1/transcript/load", `{"key":"backup.csv"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"courses":1`)

	resp, env = do(t, s, fiber.MethodGet, "/api/v1/gpa", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"gpa":4`)
}

func TestSaveAndLoadRejectEscapingKeys(t *testing.T) {
	s := newTestServer(t)
	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)

	for _, tc := range []struct {
		name, path, body string
	}{
		{"save parent query", "/api/v1/transcript/save?key=../escaped.csv", ""},
		{"save absolute body", "/api/v1/transcript/save", `{"key":"/tmp/abs.csv"}`},
		{"load parent body", "/api/v1/transcript/load", `{"key":"../secret"}`},
		{"load absolute query", "/api/v1/transcript/load?key=/etc/hostname", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := do(t, s, fiber.MethodPost, tc.path, tc.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "error", env.Status)
			assert.Contains(t, env.Message, "inside the data directory")
		})
	}

	resp, env := do(t, s, fiber.MethodGet, "/api/v1/transcript", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), "202510", "a rejected load leaves the transcript alone")
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	do(t, s, fiber.MethodPost, "/api/v1/semesters", `{"id":"202510"}`)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/transcript/export.xlsx", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), ".xlsx")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	resp, env := do(t, s, fiber.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", env.Status)
}
