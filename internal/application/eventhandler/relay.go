package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// Broadcaster publishes a message on a named channel (Redis pub/sub in production).
type Broadcaster interface {
	Publish(ctx context.Context, channel string, message any) error
}

// RelayMessage is the wire form of a relayed event.
type RelayMessage struct {
	Type        shared.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

// ═══════════════════════════════════════════════════════════════════════════
// EVENT RELAY
// Forwards every event to an external channel so other processes can follow
// changes to the transcript. Relay failures never affect the command.
// ═══════════════════════════════════════════════════════════════════════════

// RelayHandler forwards events to a Broadcaster.
type RelayHandler struct {
	broadcaster Broadcaster
	channel     func(eventType string) string
	logger      *logger.Logger
	timeout     time.Duration
}

// NewRelayHandler creates a relay. channel maps an event type to a channel name.
func NewRelayHandler(b Broadcaster, channel func(eventType string) string, log *logger.Logger) *RelayHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &RelayHandler{
		broadcaster: b,
		channel:     channel,
		logger:      log.With(logger.Component("relay")),
		timeout:     2 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *RelayHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	msg := RelayMessage{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
	channel := h.channel(string(event.EventType()))
	if err := h.broadcaster.Publish(ctx, channel, msg); err != nil {
		h.logger.Warn("failed to relay event",
			logger.EventType(string(event.EventType())),
			logger.String("channel", channel),
			logger.Err(err),
		)
		return fmt.Errorf("relay %s: %w", event.EventType(), err)
	}
	return nil
}

// Register subscribes the relay to every event.
func (h *RelayHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}
