package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT TRANSCRIPT QUERY
// Renders a snapshot of the live transcript as a downloadable document.
// ══════════════════════════════════════════════════════════════════════════════

// Renderer writes a transcript in some document format.
type Renderer func(w io.Writer, t *transcript.Transcript) error

// ExportTranscriptQuery has no parameters.
type ExportTranscriptQuery struct{}

// ExportDTO is a rendered document.
type ExportDTO struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportTranscriptHandler handles ExportTranscriptQuery.
type ExportTranscriptHandler struct {
	ws          *workspace.Workspace
	render      Renderer
	contentType string
	extension   string
	logger      *logger.Logger
}

// NewExportTranscriptHandler creates a handler producing documents of the
// given content type and file extension (without the dot).
func NewExportTranscriptHandler(
	ws *workspace.Workspace,
	render Renderer,
	contentType, extension string,
	log *logger.Logger,
) *ExportTranscriptHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &ExportTranscriptHandler{
		ws:          ws,
		render:      render,
		contentType: contentType,
		extension:   extension,
		logger:      log,
	}
}

// Handle executes the query.
func (h *ExportTranscriptHandler) Handle(ctx context.Context, _ ExportTranscriptQuery) (*ExportDTO, error) {
	snapshot := h.ws.Snapshot()

	start := time.Now()
	var buf bytes.Buffer
	if err := h.render(&buf, snapshot); err != nil {
		logger.FromContextOr(ctx, h.logger).Error("export failed", logger.Err(err))
		return nil, fmt.Errorf("export_transcript: %w", err)
	}
	logger.FromContextOr(ctx, h.logger).Debug("transcript exported",
		logger.Int("bytes", buf.Len()),
		logger.Latency(time.Since(start)),
	)

	return &ExportDTO{
		Filename:    fmt.Sprintf("transcript-%s.%s", time.Now().UTC().Format("20060102"), h.extension),
		ContentType: h.contentType,
		Data:        buf.Bytes(),
	}, nil
}
