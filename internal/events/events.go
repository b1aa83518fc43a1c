package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "exam-attempt-service"
	EventVersion = "1.0"

	AttemptCreated   = "attempt.created"
	AttemptSubmitted = "attempt.submitted"
	AttemptGraded    = "attempt.graded"
)

// Event is the envelope published for every attempt transition
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Key       string      `json:"key"`
	Data      interface{} `json:"data"`
}

// EventPublisher delivers events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NewEvent builds an envelope. key orders events of one aggregate on the broker.
func NewEvent(eventType, key string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Key:       key,
		Data:      data,
	}
}

type AttemptCreatedData struct {
	AttemptID uint       `json:"attempt_id"`
	ExamID    uint       `json:"exam_id"`
	StudentID string     `json:"student_id"`
	Ordinal   int        `json:"ordinal"`
	ItemCount int        `json:"item_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type AttemptSubmittedData struct {
	AttemptID     uint    `json:"attempt_id"`
	ExamID        uint    `json:"exam_id"`
	StudentID     string  `json:"student_id"`
	Trigger       string  `json:"trigger"`
	AutoScore     float64 `json:"auto_score"`
	MaxScore      float64 `json:"max_score"`
	FinalScore    float64 `json:"final_score"`
	PendingManual int     `json:"pending_manual"`
}

type AttemptGradedData struct {
	AttemptID   uint    `json:"attempt_id"`
	ExamID      uint    `json:"exam_id"`
	StudentID   string  `json:"student_id"`
	GraderID    string  `json:"grader_id"`
	ManualScore float64 `json:"manual_score"`
	FinalScore  float64 `json:"final_score"`
}
