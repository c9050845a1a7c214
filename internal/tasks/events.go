package tasks

import (
	"context"
	"time"
)

type EventType string

const (
	EventCreated   EventType = "created"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event describes one persisted lifecycle transition.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
	Status    Status    `json:"status"`
	Languages []string  `json:"languages"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier receives lifecycle events after the matching store write succeeded.
// Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
