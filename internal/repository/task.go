package repository

import (
	"context"
	"errors"
	"time"

	"playlist-downloader/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// BatchRepository exposes persistence operations for recorded batch runs.
type BatchRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, batch *domain.BatchRun) error
	Finish(ctx context.Context, id string, status domain.BatchStatus, finishedAt time.Time) error
	Get(ctx context.Context, id string) (*domain.BatchRun, error)
	List(ctx context.Context, limit int) ([]domain.BatchRun, error)
	Delete(ctx context.Context, id string) error
}

// TaskRepository records the download tasks of a batch.
type TaskRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, task *domain.DownloadTask) error
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errorMessage *string, at time.Time) error
	UpdateProgress(ctx context.Context, id string, progress int) error
	ListByBatch(ctx context.Context, batchID string) ([]domain.DownloadTask, error)
}
