package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/repository"
)

// HistoryService records batch runs as they execute and serves them back for review.
// Recorded batches are an audit trail; nothing is resumed from them.
type HistoryService interface {
	RecordBatchStarted(ctx context.Context, batch *domain.BatchRun) error
	RecordTaskCreated(ctx context.Context, task *domain.DownloadTask) error
	RecordTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string, at time.Time) error
	RecordTaskProgress(ctx context.Context, taskID string, progress int) error
	RecordBatchFinished(ctx context.Context, batchID string, status domain.BatchStatus, at time.Time) error
	GetBatch(ctx context.Context, id string) (*domain.BatchRun, error)
	ListBatches(ctx context.Context, limit int) ([]domain.BatchRun, error)
	DeleteBatch(ctx context.Context, id string) error
}

type historyService struct {
	batches repository.BatchRepository
	tasks   repository.TaskRepository
}

func NewHistoryService(batches repository.BatchRepository, tasks repository.TaskRepository) HistoryService {
	return &historyService{
		batches: batches,
		tasks:   tasks,
	}
}

func (s *historyService) RecordBatchStarted(ctx context.Context, batch *domain.BatchRun) error {
	return s.batches.Create(ctx, batch)
}

func (s *historyService) RecordTaskCreated(ctx context.Context, task *domain.DownloadTask) error {
	return s.tasks.Create(ctx, task)
}

func (s *historyService) RecordTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string, at time.Time) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	return s.tasks.UpdateStatus(ctx, taskID, status, msg, at)
}

func (s *historyService) RecordTaskProgress(ctx context.Context, taskID string, progress int) error {
	return s.tasks.UpdateProgress(ctx, taskID, progress)
}

func (s *historyService) RecordBatchFinished(ctx context.Context, batchID string, status domain.BatchStatus, at time.Time) error {
	return s.batches.Finish(ctx, batchID, status, at)
}

func (s *historyService) GetBatch(ctx context.Context, id string) (*domain.BatchRun, error) {
	batch, err := s.batches.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachTasks(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *historyService) ListBatches(ctx context.Context, limit int) ([]domain.BatchRun, error) {
	batches, err := s.batches.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		if err := s.attachTasks(ctx, &batches[i]); err != nil {
			return nil, err
		}
	}
	return batches, nil
}

func (s *historyService) DeleteBatch(ctx context.Context, id string) error {
	return s.batches.Delete(ctx, id)
}

func (s *historyService) attachTasks(ctx context.Context, batch *domain.BatchRun) error {
	tasks, err := s.tasks.ListByBatch(ctx, batch.ID)
	if err != nil {
		return err
	}
	batch.Tasks = make([]*domain.DownloadTask, len(tasks))
	for i := range tasks {
		batch.Tasks[i] = &tasks[i]
	}
	return nil
}

// NewHistoryRecorder returns an orchestrator listener that writes every event through
// to history. Write failures are logged and never reach the orchestrator.
func NewHistoryRecorder(history HistoryService, logger *logrus.Logger) func(domain.Event) {
	if logger == nil {
		logger = logrus.New()
	}
	return func(e domain.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		switch e.Type {
		case domain.EventBatchStarted:
			err = history.RecordBatchStarted(ctx, &domain.BatchRun{
				ID:        e.BatchID,
				Kind:      e.BatchKind,
				Status:    e.BatchStatus,
				StartedAt: e.Timestamp,
			})
		case domain.EventTaskCreated:
			err = history.RecordTaskCreated(ctx, &domain.DownloadTask{
				ID:        e.TaskID,
				BatchID:   e.BatchID,
				Position:  e.Position,
				Track:     e.Track,
				Status:    e.Status,
				Progress:  e.Progress,
				CreatedAt: e.Timestamp,
			})
		case domain.EventTaskStatus:
			err = history.RecordTaskStatus(ctx, e.TaskID, e.Status, e.Error, e.Timestamp)
		case domain.EventTaskProgress:
			err = history.RecordTaskProgress(ctx, e.TaskID, e.Progress)
		case domain.EventBatchCompleted:
			err = history.RecordBatchFinished(ctx, e.BatchID, e.BatchStatus, e.Timestamp)
		}
		if err != nil {
			logger.WithFields(logrus.Fields{
				"batch_id": e.BatchID,
				"task_id":  e.TaskID,
				"event":    e.Type,
			}).Warnf("record history: %v", err)
		}
	}
}
