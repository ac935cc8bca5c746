package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRepos(t *testing.T) (repository.BatchRepository, repository.TaskRepository) {
	t.Helper()
	db := openTestDB(t)
	batches := NewBatchRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()
	require.NoError(t, batches.Init(ctx))
	require.NoError(t, tasks.Init(ctx))
	return batches, tasks
}

func TestBatchLifecycle(t *testing.T) {
	batches, tasks := newRepos(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	batch := &domain.BatchRun{ID: "b1", Kind: domain.BatchKindAll, Status: domain.BatchStatusRunning, StartedAt: started}
	require.NoError(t, batches.Create(ctx, batch))

	got, err := batches.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchKindAll, got.Kind)
	assert.Equal(t, domain.BatchStatusRunning, got.Status)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Nil(t, got.FinishedAt)

	for i, id := range []string{"t1", "t2"} {
		task := &domain.DownloadTask{
			ID:        id,
			BatchID:   "b1",
			Position:  i,
			Track:     domain.Track{ID: "track-" + id, Name: "Song", Artist: "Band"},
			Status:    domain.TaskStatusPending,
			CreatedAt: started,
		}
		require.NoError(t, tasks.Create(ctx, task))
	}

	finished := time.Now().Truncate(time.Second)
	require.NoError(t, batches.Finish(ctx, "b1", domain.BatchStatusPartial, finished))

	got, err = batches.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusPartial, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	require.NoError(t, batches.Delete(ctx, "b1"))
	_, err = batches.Get(ctx, "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	left, err := tasks.ListByBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestBatchNotFound(t *testing.T) {
	batches, _ := newRepos(t)
	ctx := context.Background()

	_, err := batches.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, batches.Finish(ctx, "missing", domain.BatchStatusCompleted, time.Now()), repository.ErrNotFound)
	assert.ErrorIs(t, batches.Delete(ctx, "missing"), repository.ErrNotFound)
}

func TestBatchListNewestFirst(t *testing.T) {
	batches, _ := newRepos(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, batches.Create(ctx, &domain.BatchRun{
			ID:        id,
			Kind:      domain.BatchKindSingle,
			Status:    domain.BatchStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := batches.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
}

func TestTaskStatusAndProgress(t *testing.T) {
	batches, tasks := newRepos(t)
	ctx := context.Background()

	require.NoError(t, batches.Create(ctx, &domain.BatchRun{ID: "b", Kind: domain.BatchKindAll, Status: domain.BatchStatusRunning, StartedAt: time.Now()}))
	require.NoError(t, tasks.Create(ctx, &domain.DownloadTask{
		ID:       "ok",
		BatchID:  "b",
		Position: 0,
		Track: domain.Track{
			ID:     "x",
			Name:   "Matched",
			Match:  &domain.Match{Title: "Matched (Audio)", URL: "https://www.youtube.com/watch?v=1"},
			Artist: "A",
		},
		Status: domain.TaskStatusPending,
	}))
	require.NoError(t, tasks.Create(ctx, &domain.DownloadTask{
		ID:       "bad",
		BatchID:  "b",
		Position: 1,
		Track:    domain.Track{ID: "y", Name: "Unmatched"},
		Status:   domain.TaskStatusPending,
	}))

	now := time.Now()
	require.NoError(t, tasks.UpdateStatus(ctx, "ok", domain.TaskStatusInProgress, nil, now))
	require.NoError(t, tasks.UpdateProgress(ctx, "ok", 40))
	require.NoError(t, tasks.UpdateProgress(ctx, "ok", 100))
	require.NoError(t, tasks.UpdateStatus(ctx, "ok", domain.TaskStatusCompleted, nil, now))

	msg := "transfer interrupted"
	require.NoError(t, tasks.UpdateStatus(ctx, "bad", domain.TaskStatusInProgress, nil, now))
	require.NoError(t, tasks.UpdateStatus(ctx, "bad", domain.TaskStatusFailed, &msg, now))

	list, err := tasks.ListByBatch(ctx, "b")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "ok", list[0].ID)
	assert.Equal(t, domain.TaskStatusCompleted, list[0].Status)
	assert.Equal(t, 100, list[0].Progress)
	assert.NotNil(t, list[0].StartedAt)
	assert.NotNil(t, list[0].FinishedAt)
	require.NotNil(t, list[0].Track.Match)
	assert.Equal(t, "Matched (Audio)", list[0].Track.Match.Title)

	assert.Equal(t, "bad", list[1].ID)
	assert.Equal(t, domain.TaskStatusFailed, list[1].Status)
	assert.Equal(t, msg, list[1].Error)
	assert.Nil(t, list[1].Track.Match)

	assert.ErrorIs(t, tasks.UpdateProgress(ctx, "missing", 10), repository.ErrNotFound)
}

func TestTaskRequiresBatch(t *testing.T) {
	_, tasks := newRepos(t)
	err := tasks.Create(context.Background(), &domain.DownloadTask{ID: "orphan", BatchID: "nope", Status: domain.TaskStatusPending})
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewBatchRepository(db).Init(context.Background()))
}
