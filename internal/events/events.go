package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Source is stamped on every event emitted by this service
const Source = "examination-service"

const (
	AttemptStarted   = "attempt.started"
	AttemptSubmitted = "attempt.submitted"
	AttemptCompleted = "attempt.completed"
	AttemptExpired   = "attempt.expired"
	AttemptStopped   = "attempt.stopped"
	AttemptGraded    = "attempt.graded"
)

// Event is the envelope serialized as the message payload
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    uint        `json:"user_id,omitempty"`
	Data      interface{} `json:"data"`
}

// AttemptEventData is carried by every attempt.* event
type AttemptEventData struct {
	AttemptID  uint     `json:"attempt_id"`
	PaperID    uint     `json:"paper_id"`
	UserID     uint     `json:"user_id"`
	Status     string   `json:"status"`
	EndReason  *string  `json:"end_reason,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Passed     *bool    `json:"passed,omitempty"`
}

func NewEvent(eventType string, userID uint, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    Source,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Data:      data,
	}
}

// EventPublisher delivers events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
