package query

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/export"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/textfile"
)

var errMiss = errors.New("miss")

type memoryCache struct {
	summary   *transcript.Summary
	sets      int
	failSet   bool
	beforeSet func()
}

func (c *memoryCache) Get(context.Context) (*transcript.Summary, error) {
	if c.summary == nil {
		return nil, errMiss
	}
	s := *c.summary
	return &s, nil
}

func (c *memoryCache) Set(_ context.Context, s transcript.Summary) error {
	if c.beforeSet != nil {
		c.beforeSet()
	}
	if c.failSet {
		return errors.New("cache down")
	}
	c.sets++
	c.summary = &s
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.summary = nil
	return nil
}

// retakeWorkspace holds the CSC101 retake example: B in 202510, A in 202520.
func retakeWorkspace() *workspace.Workspace {
	t := transcript.NewBuilder("Aigerim").
		Course("202510", transcript.Course{Code: "CSC101", Name: "Intro", Credits: 3, Grade: "B"}).
		Course("202510", transcript.Course{Code: "ART100", Name: "Drawing", Credits: 2, Grade: "W"}).
		Course("202520", transcript.Course{Code: "CSC101", Name: "Intro", Credits: 3, Grade: "A"}).
		Semester("202610").
		Build()
	return workspace.New(t)
}

func TestListSemesters(t *testing.T) {
	h := NewListSemestersHandler(retakeWorkspace(), nil, textfile.Fingerprint, nil)

	dto, err := h.Handle(context.Background(), ListSemestersQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Aigerim", dto.StudentName)
	assert.Equal(t, 4.0, dto.CumulativeGPA)
	assert.False(t, dto.Cached)
	assert.Len(t, dto.Fingerprint, 64)

	require.Len(t, dto.Semesters, 3)
	assert.Equal(t, SemesterSummaryDTO{ID: "202510", CourseCount: 2, Credits: 5, GPA: 3.0, GPADisplay: 3.0}, dto.Semesters[0])
	assert.Equal(t, "202520", dto.Semesters[1].ID)
	assert.Equal(t, 4.0, dto.Semesters[1].GPA)
	assert.Equal(t, 0, dto.Semesters[2].CourseCount)
	assert.Equal(t, 0.0, dto.Semesters[2].GPA)
}

func TestListSemesters_UsesCache(t *testing.T) {
	ws := retakeWorkspace()
	cache := &memoryCache{}
	h := NewListSemestersHandler(ws, cache, textfile.Fingerprint, nil)
	ctx := context.Background()

	first, err := h.Handle(ctx, ListSemestersQuery{})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.sets)

	second, err := h.Handle(ctx, ListSemestersQuery{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Semesters, second.Semesters)
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, ws.Update(func(tr *transcript.Transcript) error { return tr.DeleteSemester("202610") }))
	require.NoError(t, cache.Invalidate(ctx))

	third, err := h.Handle(ctx, ListSemestersQuery{})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Semesters, 2)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestListSemesters_CommandBetweenReadAndCacheFill(t *testing.T) {
	ws := workspace.New(nil)
	cache := &memoryCache{}
	h := NewListSemestersHandler(ws, cache, textfile.Fingerprint, nil)
	ctx := context.Background()

	// A command commits and invalidates after the summary was computed
	// but before it reaches the cache.
	cache.beforeSet = func() {
		cache.beforeSet = nil
		require.NoError(t, ws.Update(func(tr *transcript.Transcript) error { return tr.AddSemester("202510") }))
		require.NoError(t, cache.Invalidate(ctx))
	}

	first, err := h.Handle(ctx, ListSemestersQuery{})
	require.NoError(t, err)
	assert.Empty(t, first.Semesters)
	require.NotNil(t, cache.summary, "the racing reader still filled the cache")
	assert.NotEqual(t, ws.Version(), cache.summary.Version)

	second, err := h.Handle(ctx, ListSemestersQuery{})
	require.NoError(t, err)
	assert.False(t, second.Cached, "the outdated summary is not served")
	require.Len(t, second.Semesters, 1)
	assert.Equal(t, "202510", second.Semesters[0].ID)

	third, err := h.Handle(ctx, ListSemestersQuery{})
	require.NoError(t, err)
	assert.True(t, third.Cached)
	assert.Equal(t, second.Fingerprint, third.Fingerprint)
}

func TestListSemesters_IgnoresSummaryOfOtherVersion(t *testing.T) {
	ws := retakeWorkspace()
	stale := transcript.NewSummary(transcript.New())
	stale.Version = workspace.New(nil).Version()
	cache := &memoryCache{summary: &stale}
	h := NewListSemestersHandler(ws, cache, nil, nil)

	dto, err := h.Handle(context.Background(), ListSemestersQuery{})
	require.NoError(t, err)
	assert.False(t, dto.Cached)
	assert.Len(t, dto.Semesters, 3)
	assert.Equal(t, ws.Version(), cache.summary.Version)
}

func TestListSemesters_CacheFailureFallsBack(t *testing.T) {
	h := NewListSemestersHandler(retakeWorkspace(), &memoryCache{failSet: true}, nil, nil)

	dto, err := h.Handle(context.Background(), ListSemestersQuery{})
	require.NoError(t, err)
	assert.Len(t, dto.Semesters, 3)
	assert.Empty(t, dto.Fingerprint)
}

func TestGetCumulativeGPA(t *testing.T) {
	dto, err := NewGetCumulativeGPAHandler(retakeWorkspace()).Handle(context.Background(), GetCumulativeGPAQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, dto.GPA)
	assert.Equal(t, 3, dto.SemesterCount)
	assert.Equal(t, 3, dto.CourseCount)

	empty, err := NewGetCumulativeGPAHandler(workspace.New(nil)).Handle(context.Background(), GetCumulativeGPAQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.GPA)
}

func TestGetCumulativeGPA_Rounding(t *testing.T) {
	tr := transcript.NewBuilder("").
		Course("202510", transcript.Course{Code: "A1", Credits: 3, Grade: "A-"}).
		Course("202510", transcript.Course{Code: "B1", Credits: 4, Grade: "B+"}).
		Build()

	dto, err := NewGetCumulativeGPAHandler(workspace.New(tr)).Handle(context.Background(), GetCumulativeGPAQuery{})
	require.NoError(t, err)
	assert.InDelta(t, (3.7*3+3.3*4)/7, dto.GPA, 1e-9)
	assert.Equal(t, 3.47, dto.GPADisplay)
}

func TestGetSemester(t *testing.T) {
	h := NewGetSemesterHandler(retakeWorkspace())

	dto, err := h.Handle(context.Background(), GetSemesterQuery{SemesterID: "202510"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, dto.GPA)
	assert.Equal(t, 5, dto.Credits)
	assert.Equal(t, 3, dto.GradedCredits)
	require.Len(t, dto.Courses, 2)

	csc := dto.Courses[0]
	assert.Equal(t, "CSC101", csc.Code)
	require.NotNil(t, csc.Points)
	assert.Equal(t, 3.0, *csc.Points)
	assert.True(t, csc.KnownGrade)

	art := dto.Courses[1]
	assert.True(t, art.Excluded)
	assert.Nil(t, art.Points)

	_, err = h.Handle(context.Background(), GetSemesterQuery{SemesterID: "209910"})
	assert.ErrorIs(t, err, shared.ErrSemesterNotFound)
}

func TestGetSemesterGPA(t *testing.T) {
	h := NewGetSemesterGPAHandler(retakeWorkspace())

	dto, err := h.Handle(context.Background(), GetSemesterGPAQuery{SemesterID: "202520"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, dto.GPA)

	_, err = h.Handle(context.Background(), GetSemesterGPAQuery{SemesterID: "nope"})
	assert.True(t, shared.IsNotFound(err))
}

func TestExportTranscript(t *testing.T) {
	h := NewExportTranscriptHandler(retakeWorkspace(), textfile.Encode, "text/csv", "csv", nil)

	dto, err := h.Handle(context.Background(), ExportTranscriptQuery{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", dto.ContentType)
	assert.Regexp(t, `^transcript-\d{8}\.csv$`, dto.Filename)
	assert.Equal(t,
		"Aigerim\n202510,CSC101,Intro,3,B\n202510,ART100,Drawing,2,W\n202520,CSC101,Intro,3,A\n",
		string(dto.Data))
}

func TestExportTranscript_XLSX(t *testing.T) {
	h := NewExportTranscriptHandler(retakeWorkspace(), export.WriteXLSX, export.ContentType, "xlsx", nil)

	dto, err := h.Handle(context.Background(), ExportTranscriptQuery{})
	require.NoError(t, err)
	assert.Equal(t, export.ContentType, dto.ContentType)
	// XLSX files are zip archives.
	assert.Equal(t, "PK", string(dto.Data[:2]))
}

func TestExportTranscript_RenderError(t *testing.T) {
	failing := func(io.Writer, *transcript.Transcript) error { return errors.New("disk full") }
	h := NewExportTranscriptHandler(retakeWorkspace(), failing, "text/plain", "txt", nil)

	_, err := h.Handle(context.Background(), ExportTranscriptQuery{})
	assert.ErrorContains(t, err, "disk full")
}
