package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tasksWith(statuses ...TaskStatus) *BatchRun {
	b := &BatchRun{ID: "b1"}
	for i, s := range statuses {
		b.Tasks = append(b.Tasks, &DownloadTask{ID: string(rune('a' + i)), Status: s})
	}
	return b
}

func TestBatchAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []TaskStatus
		want     BatchStatus
	}{
		{name: "empty batch", want: BatchStatusCompleted},
		{name: "all completed", statuses: []TaskStatus{TaskStatusCompleted, TaskStatusCompleted}, want: BatchStatusCompleted},
		{name: "all failed", statuses: []TaskStatus{TaskStatusFailed, TaskStatusFailed}, want: BatchStatusFailed},
		{name: "mixed", statuses: []TaskStatus{TaskStatusCompleted, TaskStatusFailed}, want: BatchStatusPartial},
		{name: "still pending", statuses: []TaskStatus{TaskStatusCompleted, TaskStatusPending}, want: BatchStatusRunning},
		{name: "in progress", statuses: []TaskStatus{TaskStatusInProgress}, want: BatchStatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tasksWith(tt.statuses...).AggregateStatus())
		})
	}
}

func TestBatchCounts(t *testing.T) {
	completed, failed := tasksWith(TaskStatusCompleted, TaskStatusFailed, TaskStatusCompleted, TaskStatusPending).Counts()
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, failed)
}

func TestBatchCloneIsDeep(t *testing.T) {
	now := time.Now()
	b := &BatchRun{
		ID: "b1",
		Tasks: []*DownloadTask{{
			ID:        "t1",
			Track:     Track{ID: "x", Match: &Match{Title: "x", URL: "u"}},
			StartedAt: &now,
		}},
	}

	c := b.Clone()
	c.Tasks[0].Status = TaskStatusFailed
	c.Tasks[0].Track.Match.URL = "changed"
	*c.Tasks[0].StartedAt = now.Add(time.Hour)

	assert.Equal(t, TaskStatus(""), b.Tasks[0].Status)
	assert.Equal(t, "u", b.Tasks[0].Track.Match.URL)
	assert.Equal(t, now, *b.Tasks[0].StartedAt)
}

func TestTrackMatchStatus(t *testing.T) {
	assert.Equal(t, MatchStatusUnmatched, Track{}.MatchStatus())
	assert.Equal(t, MatchStatusUnmatched, Track{Match: &Match{Title: "t"}}.MatchStatus())
	assert.Equal(t, MatchStatusMatched, Track{Match: &Match{URL: "https://www.youtube.com/watch?v=1"}}.MatchStatus())
	assert.Equal(t, "Song - Band", Track{Name: "Song", Artist: "Band"}.Label())
	assert.Equal(t, "Song", Track{Name: "Song"}.Label())
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusInProgress.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
}
