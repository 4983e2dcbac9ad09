package eventhandler

import (
	"sort"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// AuditHandler writes one log line per event.
type AuditHandler struct {
	logger *logger.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(log *logger.Logger) *AuditHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AuditHandler{logger: log.With(logger.Component("audit"))}
}

// Handle implements shared.EventHandler.
func (h *AuditHandler) Handle(event shared.Event) error {
	payload := event.Payload()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]logger.Field, 0, len(keys)+2)
	fields = append(fields,
		logger.EventType(string(event.EventType())),
		logger.Time("occurred_at", event.OccurredAt()),
	)
	for _, k := range keys {
		fields = append(fields, logger.Any(k, payload[k]))
	}

	h.logger.Info("transcript event", fields...)
	return nil
}

// Register subscribes the handler to every event.
func (h *AuditHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}
