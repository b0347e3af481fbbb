package jobs

import (
	"sync"
	"time"

	"media-translator/internal/domain"
)

// EventType classifies messages emitted while a job is followed.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeWaiting  EventType = "waiting"
	EventTypeNotice   EventType = "notice"
	EventTypeArtifact EventType = "artifact"
	EventTypeError    EventType = "error"
	EventTypeUpload   EventType = "upload"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64                      `json:"seq"`
	Timestamp time.Time                  `json:"timestamp"`
	JobID     string                     `json:"jobId"`
	Type      EventType                  `json:"type"`
	Status    domain.JobStatus           `json:"status,omitempty"`
	Progress  int                        `json:"progress,omitempty"`
	Category  domain.FailureCategory     `json:"category,omitempty"`
	Message   string                     `json:"message,omitempty"`
	State     *domain.JobState           `json:"state,omitempty"`
	Artifact  *domain.ArtifactDescriptor `json:"artifact,omitempty"`
}

// EventFromNotification converts a core notification into a bus event.
func EventFromNotification(n domain.Notification) Event {
	event := Event{
		Timestamp: n.Timestamp,
		JobID:     n.JobID,
		Category:  n.Category,
		Message:   n.Message,
		Progress:  n.Progress,
		Artifact:  n.Artifact,
	}
	if n.State != nil {
		state := n.State.Clone()
		event.State = &state
		event.Status = state.Status
		event.Progress = state.Progress
	}

	switch n.Kind {
	case domain.NotificationWaiting:
		event.Type = EventTypeWaiting
	case domain.NotificationNotice:
		event.Type = EventTypeNotice
	case domain.NotificationArtifact:
		event.Type = EventTypeArtifact
	case domain.NotificationFailure:
		event.Type = EventTypeError
	case domain.NotificationUpload:
		event.Type = EventTypeUpload
	default:
		event.Type = EventTypeStatus
	}
	return event
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	changed   chan struct{}
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		changed:   make(chan struct{}),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	close(b.changed)
	b.changed = make(chan struct{})
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Changed returns a channel closed on the next Publish.
func (b *EventBus) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.changed
}
