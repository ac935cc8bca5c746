package domain

import "time"

type EventType string

const (
	EventBatchStarted   EventType = "batch_started"
	EventTaskCreated    EventType = "task_created"
	EventTaskStatus     EventType = "task_status"
	EventTaskProgress   EventType = "task_progress"
	EventBatchCompleted EventType = "batch_completed"
)

// Event is emitted by the orchestrator for every observable change.
// Task events carry the task, its status and its progress at the time of the change.
type Event struct {
	Type        EventType
	BatchID     string
	BatchKind   BatchKind
	BatchStatus BatchStatus
	TaskID      string
	Track       Track
	Position    int
	Status      TaskStatus
	Progress    int
	Error       string
	Timestamp   time.Time
}

// IsTaskEvent reports whether the event concerns a single task.
func (e Event) IsTaskEvent() bool {
	return e.TaskID != ""
}
