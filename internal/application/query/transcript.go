// Package query contains read operations on the live transcript (CQRS - Queries).
package query

import (
	"context"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// FingerprintFunc identifies the content of a transcript, e.g. for ETags.
type FingerprintFunc func(t *transcript.Transcript) string

// ══════════════════════════════════════════════════════════════════════════════
// LIST SEMESTERS QUERY
// The transcript overview: student name, cumulative GPA and one summary per
// semester in ascending ID order. Served from the summary cache when one is
// configured; cache failures fall back to computing from the workspace.
// ══════════════════════════════════════════════════════════════════════════════

// ListSemestersQuery has no parameters.
type ListSemestersQuery struct{}

// SemesterSummaryDTO is one line of the overview.
type SemesterSummaryDTO struct {
	ID          string  `json:"id"`
	CourseCount int     `json:"course_count"`
	Credits     int     `json:"credits"`
	GPA         float64 `json:"gpa"`
	GPADisplay  float64 `json:"gpa_display"`
}

// TranscriptDTO is the transcript overview.
type TranscriptDTO struct {
	StudentName          string               `json:"student_name"`
	CumulativeGPA        float64              `json:"cumulative_gpa"`
	CumulativeGPADisplay float64              `json:"cumulative_gpa_display"`
	Semesters            []SemesterSummaryDTO `json:"semesters"`
	Fingerprint          string               `json:"-"`
	Cached               bool                 `json:"-"`
}

// ListSemestersHandler handles ListSemestersQuery.
type ListSemestersHandler struct {
	ws          *workspace.Workspace
	cache       transcript.SummaryCache
	fingerprint FingerprintFunc
	logger      *logger.Logger
}

// NewListSemestersHandler creates a new handler. cache and fingerprint may be nil.
func NewListSemestersHandler(
	ws *workspace.Workspace,
	cache transcript.SummaryCache,
	fingerprint FingerprintFunc,
	log *logger.Logger,
) *ListSemestersHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &ListSemestersHandler{ws: ws, cache: cache, fingerprint: fingerprint, logger: log}
}

// Handle executes the query. A cached summary computed at another
// workspace version is ignored, so a summary cached by a reader that raced
// a command is never served.
func (h *ListSemestersHandler) Handle(ctx context.Context, _ ListSemestersQuery) (*TranscriptDTO, error) {
	log := logger.FromContextOr(ctx, h.logger)

	if h.cache != nil {
		cached, err := h.cache.Get(ctx)
		switch {
		case err != nil:
			log.Debug("summary cache miss", logger.Err(err))
		case cached.Version != h.ws.Version():
			log.Debug("stale summary ignored", logger.String("cached_version", cached.Version))
		default:
			dto := toTranscriptDTO(*cached)
			dto.Cached = true
			return dto, nil
		}
	}

	var summary transcript.Summary
	_ = h.ws.ViewVersion(func(t *transcript.Transcript, version string) error {
		summary = transcript.NewSummary(t)
		summary.Version = version
		if h.fingerprint != nil {
			summary.Fingerprint = h.fingerprint(t)
		}
		return nil
	})

	if h.cache != nil && summary.Version == h.ws.Version() {
		if err := h.cache.Set(ctx, summary); err != nil {
			log.Warn("failed to cache summary", logger.Err(err))
		}
	}

	return toTranscriptDTO(summary), nil
}

func toTranscriptDTO(s transcript.Summary) *TranscriptDTO {
	dto := &TranscriptDTO{
		StudentName:          s.StudentName,
		CumulativeGPA:        s.CumulativeGPA,
		CumulativeGPADisplay: transcript.RoundGPA(s.CumulativeGPA),
		Semesters:            make([]SemesterSummaryDTO, 0, len(s.Semesters)),
		Fingerprint:          s.Fingerprint,
	}
	for _, sem := range s.Semesters {
		dto.Semesters = append(dto.Semesters, SemesterSummaryDTO{
			ID:          sem.ID,
			CourseCount: sem.CourseCount,
			Credits:     sem.Credits,
			GPA:         sem.GPA,
			GPADisplay:  transcript.RoundGPA(sem.GPA),
		})
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// GET CUMULATIVE GPA QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetCumulativeGPAQuery has no parameters.
type GetCumulativeGPAQuery struct{}

// CumulativeGPADTO carries the cumulative GPA.
type CumulativeGPADTO struct {
	GPA           float64 `json:"gpa"`
	GPADisplay    float64 `json:"gpa_display"`
	SemesterCount int     `json:"semester_count"`
	CourseCount   int     `json:"course_count"`
}

// GetCumulativeGPAHandler handles GetCumulativeGPAQuery.
type GetCumulativeGPAHandler struct {
	ws *workspace.Workspace
}

// NewGetCumulativeGPAHandler creates a new GetCumulativeGPAHandler.
func NewGetCumulativeGPAHandler(ws *workspace.Workspace) *GetCumulativeGPAHandler {
	return &GetCumulativeGPAHandler{ws: ws}
}

// Handle executes the query.
func (h *GetCumulativeGPAHandler) Handle(_ context.Context, _ GetCumulativeGPAQuery) (*CumulativeGPADTO, error) {
	dto := &CumulativeGPADTO{}
	_ = h.ws.View(func(t *transcript.Transcript) error {
		dto.GPA = t.CumulativeGPA()
		dto.SemesterCount = t.Len()
		dto.CourseCount = t.CourseCount()
		return nil
	})
	dto.GPADisplay = transcript.RoundGPA(dto.GPA)
	return dto, nil
}
