package transcript

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists whole transcripts under a storage key.
// For the file backend the key is a path; other backends treat it as a name.
type Repository interface {
	// Save overwrites whatever is stored under key.
	Save(ctx context.Context, key string, t *Transcript) error

	// Load returns the transcript stored under key.
	// Returns ErrTranscriptNotFound when nothing is stored there.
	Load(ctx context.Context, key string) (*Transcript, LoadStats, error)

	// Driver names the backend ("file", "sqlite", "postgres", "redis").
	Driver() string
}

// LoadStats reports how many persisted rows were accepted or dropped.
type LoadStats struct {
	Accepted int
	Skipped  int
}

// Summary is the cached read model of a transcript.
type Summary struct {
	StudentName   string            `json:"student_name"`
	CumulativeGPA float64           `json:"cumulative_gpa"`
	Semesters     []SemesterSummary `json:"semesters"`
	ComputedAt    time.Time         `json:"computed_at"`
	// Fingerprint identifies the content the summary was computed from.
	// Set by callers that know how to fingerprint a transcript.
	Fingerprint   string            `json:"fingerprint,omitempty"`
	// Version is the workspace version the summary was computed at. A
	// cached summary is only served while the version is unchanged.
	Version       string            `json:"version,omitempty"`
}

// NewSummary computes the read model of t.
func NewSummary(t *Transcript) Summary {
	return Summary{
		StudentName:   t.StudentName(),
		CumulativeGPA: t.CumulativeGPA(),
		Semesters:     t.Summaries(),
		ComputedAt:    time.Now().UTC(),
	}
}

// SummaryCache keeps the last computed Summary.
type SummaryCache interface {
	Get(ctx context.Context) (*Summary, error)
	Set(ctx context.Context, s Summary) error
	Invalidate(ctx context.Context) error
}
