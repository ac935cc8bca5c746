package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/repository"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS batch_tasks (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	track_id TEXT NOT NULL,
	track_name TEXT NOT NULL DEFAULT '',
	track_artist TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	match_title TEXT NOT NULL DEFAULT '',
	match_url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	started_at DATETIME NULL,
	finished_at DATETIME NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(batch_id) REFERENCES batches(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_batch_tasks_batch_id ON batch_tasks(batch_id);
`

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create batch_tasks table: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.DownloadTask) error {
	var matchTitle, matchURL string
	if task.Track.Match != nil {
		matchTitle = task.Track.Match.Title
		matchURL = task.Track.Match.URL
	}
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO batch_tasks (id, batch_id, position, track_id, track_name, track_artist, duration_ms, match_title, match_url, status, progress, error_message, created_at, started_at, finished_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.BatchID,
		task.Position,
		task.Track.ID,
		task.Track.Name,
		task.Track.Artist,
		task.Track.DurationMs,
		matchTitle,
		matchURL,
		string(task.Status),
		task.Progress,
		task.Error,
		createdAt.UTC(),
		nullTime(task.StartedAt),
		nullTime(task.FinishedAt),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateStatus stamps started_at on entering in_progress and finished_at on a terminal status.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errorMessage *string, at time.Time) error {
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	now := time.Now().UTC()

	query := `
UPDATE batch_tasks
SET status=?, error_message=?, updated_at=?
WHERE id=?`
	args := []any{string(status), msg, now, id}
	switch {
	case status == domain.TaskStatusInProgress:
		query = `
UPDATE batch_tasks
SET status=?, error_message=?, updated_at=?, started_at=?
WHERE id=?`
		args = []any{string(status), msg, now, at.UTC(), id}
	case status.IsTerminal():
		query = `
UPDATE batch_tasks
SET status=?, error_message=?, updated_at=?, finished_at=?
WHERE id=?`
		args = []any{string(status), msg, now, at.UTC(), id}
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return expectAffected(res, id)
}

func (r *TaskRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE batch_tasks
SET progress=?, updated_at=?
WHERE id=?`,
		progress,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update task progress: %w", err)
	}
	return expectAffected(res, id)
}

func (r *TaskRepository) ListByBatch(ctx context.Context, batchID string) ([]domain.DownloadTask, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, position, track_id, track_name, track_artist, duration_ms, match_title, match_url, status, progress, error_message, created_at, started_at, finished_at
FROM batch_tasks
WHERE batch_id=?
ORDER BY position ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.DownloadTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*domain.DownloadTask, error) {
	var (
		task       domain.DownloadTask
		matchTitle string
		matchURL   string
		status     string
		createdAt  time.Time
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	if err := scanner.Scan(
		&task.ID,
		&task.BatchID,
		&task.Position,
		&task.Track.ID,
		&task.Track.Name,
		&task.Track.Artist,
		&task.Track.DurationMs,
		&matchTitle,
		&matchURL,
		&status,
		&task.Progress,
		&task.Error,
		&createdAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.CreatedAt = createdAt.Local()
	if matchURL != "" {
		task.Track.Match = &domain.Match{Title: matchTitle, URL: matchURL}
	}
	if startedAt.Valid {
		t := startedAt.Time.Local()
		task.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time.Local()
		task.FinishedAt = &t
	}
	return &task, nil
}
