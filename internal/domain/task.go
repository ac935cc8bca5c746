package domain

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

type BatchKind string

const (
	BatchKindSingle BatchKind = "single"
	BatchKindAll    BatchKind = "all"
)

type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusFailed    BatchStatus = "failed"
)

// DownloadTask tracks the download of one track within a batch run.
type DownloadTask struct {
	ID         string
	BatchID    string
	Position   int
	Track      Track
	Status     TaskStatus
	Progress   int
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// BatchRun is an ordered group of tasks executed one after another.
type BatchRun struct {
	ID         string
	Kind       BatchKind
	Status     BatchStatus
	Tasks      []*DownloadTask
	StartedAt  time.Time
	FinishedAt *time.Time
}

// AggregateStatus derives the batch status from its tasks. An empty batch is completed.
func (b *BatchRun) AggregateStatus() BatchStatus {
	var completed, failed int
	for _, task := range b.Tasks {
		switch task.Status {
		case TaskStatusCompleted:
			completed++
		case TaskStatusFailed:
			failed++
		default:
			return BatchStatusRunning
		}
	}
	switch {
	case failed == 0:
		return BatchStatusCompleted
	case completed == 0:
		return BatchStatusFailed
	default:
		return BatchStatusPartial
	}
}

// Counts returns the number of completed and failed tasks.
func (b *BatchRun) Counts() (completed, failed int) {
	for _, task := range b.Tasks {
		switch task.Status {
		case TaskStatusCompleted:
			completed++
		case TaskStatusFailed:
			failed++
		}
	}
	return completed, failed
}

// Clone returns a deep copy safe to hand to other goroutines.
func (b *BatchRun) Clone() *BatchRun {
	if b == nil {
		return nil
	}
	out := *b
	out.FinishedAt = cloneTime(b.FinishedAt)
	out.Tasks = make([]*DownloadTask, len(b.Tasks))
	for i, task := range b.Tasks {
		out.Tasks[i] = task.Clone()
	}
	return &out
}

func (t *DownloadTask) Clone() *DownloadTask {
	if t == nil {
		return nil
	}
	out := *t
	if t.Track.Match != nil {
		m := *t.Track.Match
		out.Track.Match = &m
	}
	out.StartedAt = cloneTime(t.StartedAt)
	out.FinishedAt = cloneTime(t.FinishedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
