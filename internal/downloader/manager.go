package downloader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/progress"
)

var (
	// ErrOrchestratorBusy is returned when a download-all batch is requested while another one runs.
	ErrOrchestratorBusy = errors.New("orchestrator busy: a batch is already running")
	// ErrTaskFailed marks the terminal failure of a single download task.
	ErrTaskFailed = errors.New("download task failed")
)

// Manager sequences download tasks and reports every change to its subscribers.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	DownloadOne(ctx context.Context, track domain.Track) (*domain.DownloadTask, error)
	DownloadAll(ctx context.Context, tracks []domain.Track) (*domain.BatchRun, error)
	StartOne(track domain.Track) (*domain.DownloadTask, error)
	StartAll(tracks []domain.Track) (*domain.BatchRun, error)
	Subscribe(listener func(domain.Event)) (unsubscribe func())
	State() OrchestratorState
}

type Config struct {
	TickInterval time.Duration
	Source       progress.Source
	Logger       *logrus.Logger
}

// OrchestratorState is a point-in-time copy of the orchestrator's shared state.
// Busy is set for the whole lifetime of a download-all batch.
type OrchestratorState struct {
	Busy    bool
	Batch   *domain.BatchRun
	Singles []*domain.BatchRun
}

type manager struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	busy    bool
	batch   *domain.BatchRun
	singles map[string]*domain.BatchRun

	listenersMu sync.RWMutex
	listeners   map[uint64]func(domain.Event)
	nextID      uint64
}

func NewManager(cfg Config) Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 300 * time.Millisecond
	}
	if cfg.Source == nil {
		cfg.Source = progress.NewRandomSource(progress.DefaultMaxIncrement, uint64(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &manager{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		singles:   make(map[string]*domain.BatchRun),
		listeners: make(map[uint64]func(domain.Event)),
	}
}

// Start binds background batches to ctx. Without it they run until Shutdown.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()
	m.cfg.Logger.Infof("download orchestrator started, tick interval %s", m.cfg.TickInterval)
	return nil
}

// Shutdown stops background batches and waits for them. Interrupted tasks resolve as failed.
func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	cancel()
	m.wg.Wait()
	m.cfg.Logger.Info("download orchestrator stopped")
}

func (m *manager) Subscribe(listener func(domain.Event)) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			delete(m.listeners, id)
			m.listenersMu.Unlock()
		})
	}
}

func (m *manager) State() OrchestratorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := OrchestratorState{
		Busy:  m.busy,
		Batch: m.batch.Clone(),
	}
	for _, b := range m.singles {
		state.Singles = append(state.Singles, b.Clone())
	}
	slices.SortFunc(state.Singles, func(a, b *domain.BatchRun) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return state
}

func (m *manager) DownloadOne(ctx context.Context, track domain.Track) (*domain.DownloadTask, error) {
	batch := m.beginSingle(track)
	return m.runSingle(ctx, batch)
}

func (m *manager) StartOne(track domain.Track) (*domain.DownloadTask, error) {
	batch := m.beginSingle(track)
	snapshot := m.snapshotTask(batch.Tasks[0])

	ctx := m.backgroundContext()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.runSingle(ctx, batch)
	}()
	return snapshot, nil
}

func (m *manager) DownloadAll(ctx context.Context, tracks []domain.Track) (*domain.BatchRun, error) {
	batch, err := m.beginAll(tracks)
	if err != nil {
		return nil, err
	}
	m.runBatch(ctx, batch)
	return m.snapshotBatch(batch), nil
}

func (m *manager) StartAll(tracks []domain.Track) (*domain.BatchRun, error) {
	batch, err := m.beginAll(tracks)
	if err != nil {
		return nil, err
	}
	snapshot := m.snapshotBatch(batch)

	ctx := m.backgroundContext()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runBatch(ctx, batch)
	}()
	return snapshot, nil
}

func (m *manager) backgroundContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

func (m *manager) beginAll(tracks []domain.Track) (*domain.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return nil, ErrOrchestratorBusy
	}
	batch := newBatch(domain.BatchKindAll, tracks)
	m.busy = true
	m.batch = batch
	return batch, nil
}

func (m *manager) beginSingle(track domain.Track) *domain.BatchRun {
	batch := newBatch(domain.BatchKindSingle, []domain.Track{track})
	m.mu.Lock()
	m.singles[batch.ID] = batch
	m.mu.Unlock()
	return batch
}

func (m *manager) runSingle(ctx context.Context, batch *domain.BatchRun) (*domain.DownloadTask, error) {
	m.runBatch(ctx, batch)

	m.mu.Lock()
	delete(m.singles, batch.ID)
	task := batch.Tasks[0].Clone()
	m.mu.Unlock()

	if task.Status == domain.TaskStatusFailed {
		return task, fmt.Errorf("%w: %s", ErrTaskFailed, task.Error)
	}
	return task, nil
}

func newBatch(kind domain.BatchKind, tracks []domain.Track) *domain.BatchRun {
	now := time.Now()
	batch := &domain.BatchRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    domain.BatchStatusRunning,
		Tasks:     make([]*domain.DownloadTask, len(tracks)),
		StartedAt: now,
	}
	for i, track := range tracks {
		batch.Tasks[i] = &domain.DownloadTask{
			ID:        uuid.NewString(),
			BatchID:   batch.ID,
			Position:  i,
			Track:     track,
			Status:    domain.TaskStatusPending,
			CreatedAt: now,
		}
	}
	return batch
}

func (m *manager) runBatch(ctx context.Context, batch *domain.BatchRun) {
	logger := m.cfg.Logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"kind":     batch.Kind,
	})
	logger.Infof("batch started with %d tasks", len(batch.Tasks))

	m.emit(batchEvent(domain.EventBatchStarted, batch))
	for _, task := range batch.Tasks {
		m.emit(taskEvent(domain.EventTaskCreated, batch, task))
	}

	for _, task := range batch.Tasks {
		m.runTask(ctx, batch, task)
	}

	m.mu.Lock()
	finished := time.Now()
	batch.FinishedAt = &finished
	batch.Status = batch.AggregateStatus()
	if batch.Kind == domain.BatchKindAll {
		// cleared before batch_completed goes out so listeners may start the next batch
		m.busy = false
	}
	completed, failed := batch.Counts()
	event := batchEvent(domain.EventBatchCompleted, batch)
	m.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"completed": completed,
		"failed":    failed,
	}).Infof("batch finished: %s", event.BatchStatus)
	m.emit(event)
}

// runTask drives one task from pending to a terminal state.
func (m *manager) runTask(ctx context.Context, batch *domain.BatchRun, task *domain.DownloadTask) {
	logger := m.cfg.Logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"task_id":  task.ID,
		"track":    task.Track.Label(),
	})

	m.mu.Lock()
	started := time.Now()
	task.Status = domain.TaskStatusInProgress
	task.StartedAt = &started
	event := taskEvent(domain.EventTaskStatus, batch, task)
	m.mu.Unlock()
	m.emit(event)

	if err := ctx.Err(); err != nil {
		m.failTask(batch, task, err, logger)
		return
	}

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	current := 0
	for {
		select {
		case <-ctx.Done():
			m.failTask(batch, task, ctx.Err(), logger)
			return
		case <-ticker.C:
			next, err := m.cfg.Source.Advance(ctx, task.Track, current)
			if err != nil {
				m.failTask(batch, task, err, logger)
				return
			}
			next = progress.Clamp(current, next)
			if next >= progress.Complete {
				m.completeTask(batch, task, logger)
				return
			}
			if next != current {
				current = next
				m.mu.Lock()
				task.Progress = current
				event := taskEvent(domain.EventTaskProgress, batch, task)
				m.mu.Unlock()
				m.emit(event)
			}
		}
	}
}

func (m *manager) completeTask(batch *domain.BatchRun, task *domain.DownloadTask, logger *logrus.Entry) {
	m.mu.Lock()
	finished := time.Now()
	task.Progress = progress.Complete
	progressEvent := taskEvent(domain.EventTaskProgress, batch, task)
	task.Status = domain.TaskStatusCompleted
	task.FinishedAt = &finished
	statusEvent := taskEvent(domain.EventTaskStatus, batch, task)
	m.mu.Unlock()

	m.emit(progressEvent)
	m.emit(statusEvent)
	logger.Info("download completed")
}

func (m *manager) failTask(batch *domain.BatchRun, task *domain.DownloadTask, cause error, logger *logrus.Entry) {
	failErr := fmt.Errorf("%w: %v", ErrTaskFailed, cause)

	m.mu.Lock()
	finished := time.Now()
	task.Status = domain.TaskStatusFailed
	task.Error = cause.Error()
	task.FinishedAt = &finished
	event := taskEvent(domain.EventTaskStatus, batch, task)
	m.mu.Unlock()

	m.emit(event)
	logger.Error(failErr.Error())
}

func (m *manager) emit(event domain.Event) {
	m.listenersMu.RLock()
	ids := make([]uint64, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	listeners := make([]func(domain.Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

func (m *manager) snapshotBatch(batch *domain.BatchRun) *domain.BatchRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return batch.Clone()
}

func (m *manager) snapshotTask(task *domain.DownloadTask) *domain.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return task.Clone()
}

func batchEvent(t domain.EventType, batch *domain.BatchRun) domain.Event {
	return domain.Event{
		Type:        t,
		BatchID:     batch.ID,
		BatchKind:   batch.Kind,
		BatchStatus: batch.Status,
		Timestamp:   time.Now(),
	}
}

func taskEvent(t domain.EventType, batch *domain.BatchRun, task *domain.DownloadTask) domain.Event {
	return domain.Event{
		Type:        t,
		BatchID:     batch.ID,
		BatchKind:   batch.Kind,
		BatchStatus: batch.Status,
		TaskID:      task.ID,
		Track:       task.Track,
		Position:    task.Position,
		Status:      task.Status,
		Progress:    task.Progress,
		Error:       task.Error,
		Timestamp:   time.Now(),
	}
}

var _ Manager = (*manager)(nil)
