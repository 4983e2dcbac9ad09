// Package shared contains common domain types, errors and events
// that are used across the transcript domain and the application layer.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is published after the live transcript
// has been changed, saved or replaced.
const (
	EventStudentRenamed  EventType = "transcript.student_renamed"
	EventSemesterAdded   EventType = "transcript.semester_added"
	EventSemesterDeleted EventType = "transcript.semester_deleted"
	EventCourseAdded     EventType = "transcript.course_added"
	EventCourseDeleted   EventType = "transcript.course_deleted"
	EventCoursesSorted   EventType = "transcript.courses_sorted"

	EventTranscriptSaved  EventType = "storage.transcript_saved"
	EventTranscriptLoaded EventType = "storage.transcript_loaded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// TranscriptAggregateID is the aggregate ID of the single live transcript.
const TranscriptAggregateID = "transcript"

// ═══════════════════════════════════════════════════════════════════════════
// Transcript Events
// ═══════════════════════════════════════════════════════════════════════════

// TranscriptChangedEvent is emitted after a mutation of the live transcript.
// SemesterID and CourseCode are empty when they do not apply.
type TranscriptChangedEvent struct {
	BaseEvent
	SemesterID string `json:"semester_id,omitempty"`
	CourseCode string `json:"course_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Payload implements Event interface.
func (e TranscriptChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester_id": e.SemesterID,
		"course_code": e.CourseCode,
		"detail":      e.Detail,
	}
}

// NewTranscriptChangedEvent creates a new TranscriptChangedEvent.
func NewTranscriptChangedEvent(eventType EventType, semesterID, courseCode, detail string) TranscriptChangedEvent {
	return TranscriptChangedEvent{
		BaseEvent:  NewBaseEvent(eventType, TranscriptAggregateID),
		SemesterID: semesterID,
		CourseCode: courseCode,
		Detail:     detail,
	}
}

// TranscriptPersistedEvent is emitted after a save or a successful load.
type TranscriptPersistedEvent struct {
	BaseEvent
	Driver        string `json:"driver"`
	Key           string `json:"key"`
	SemesterCount int    `json:"semester_count"`
	CourseCount   int    `json:"course_count"`
	SkippedRows   int    `json:"skipped_rows,omitempty"`
}

// Payload implements Event interface.
func (e TranscriptPersistedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"driver":         e.Driver,
		"key":            e.Key,
		"semester_count": e.SemesterCount,
		"course_count":   e.CourseCount,
		"skipped_rows":   e.SkippedRows,
	}
}

// NewTranscriptPersistedEvent creates a new TranscriptPersistedEvent.
func NewTranscriptPersistedEvent(eventType EventType, driver, key string, semesters, courses, skipped int) TranscriptPersistedEvent {
	return TranscriptPersistedEvent{
		BaseEvent:     NewBaseEvent(eventType, TranscriptAggregateID),
		Driver:        driver,
		Key:           key,
		SemesterCount: semesters,
		CourseCount:   courses,
		SkippedRows:   skipped,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to all subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
