package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/domain"
)

// Report is the JSON document archived for every finished batch.
type Report struct {
	BatchID    string             `json:"batch_id"`
	Kind       domain.BatchKind   `json:"kind"`
	Status     domain.BatchStatus `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Completed  int                `json:"completed"`
	Failed     int                `json:"failed"`
	Tasks      []ReportTask       `json:"tasks"`
}

type ReportTask struct {
	TaskID   string            `json:"task_id"`
	Position int               `json:"position"`
	TrackID  string            `json:"track_id"`
	Name     string            `json:"name"`
	Artist   string            `json:"artist"`
	MatchURL string            `json:"match_url,omitempty"`
	Status   domain.TaskStatus `json:"status"`
	Progress int               `json:"progress"`
	Error    string            `json:"error,omitempty"`
}

type ArchiveConfig struct {
	Bucket    string
	KeyPrefix string
	Timeout   time.Duration
	Logger    *logrus.Logger
}

// ReportKey is the object key a batch report is stored under.
func ReportKey(prefix, batchID string) string {
	name := fmt.Sprintf("batch-%s.json", batchID)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// ReportArchiver assembles a report from the orchestrator's event stream and uploads it
// in the background once the batch completes. Upload failures are logged only.
type ReportArchiver struct {
	store Service
	cfg   ArchiveConfig

	mu      sync.Mutex
	pending map[string]*Report
	uploads sync.WaitGroup
}

func NewReportArchiver(store Service, cfg ArchiveConfig) *ReportArchiver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &ReportArchiver{
		store:   store,
		cfg:     cfg,
		pending: make(map[string]*Report),
	}
}

// Wait blocks until every started upload has finished.
func (a *ReportArchiver) Wait() {
	a.uploads.Wait()
}

// Handle is the orchestrator listener. It never blocks on storage.
func (a *ReportArchiver) Handle(e domain.Event) {
	a.mu.Lock()
	switch e.Type {
	case domain.EventBatchStarted:
		a.pending[e.BatchID] = &Report{
			BatchID:   e.BatchID,
			Kind:      e.BatchKind,
			Status:    e.BatchStatus,
			StartedAt: e.Timestamp,
			Tasks:     []ReportTask{},
		}
	case domain.EventTaskCreated:
		if r, ok := a.pending[e.BatchID]; ok {
			task := ReportTask{
				TaskID:   e.TaskID,
				Position: e.Position,
				TrackID:  e.Track.ID,
				Name:     e.Track.Name,
				Artist:   e.Track.Artist,
				Status:   e.Status,
			}
			if e.Track.Match != nil {
				task.MatchURL = e.Track.Match.URL
			}
			r.Tasks = append(r.Tasks, task)
		}
	case domain.EventTaskStatus, domain.EventTaskProgress:
		if r, ok := a.pending[e.BatchID]; ok {
			for i := range r.Tasks {
				if r.Tasks[i].TaskID == e.TaskID {
					r.Tasks[i].Status = e.Status
					r.Tasks[i].Progress = e.Progress
					r.Tasks[i].Error = e.Error
					break
				}
			}
		}
	case domain.EventBatchCompleted:
		r, ok := a.pending[e.BatchID]
		delete(a.pending, e.BatchID)
		a.mu.Unlock()
		if ok {
			r.Status = e.BatchStatus
			r.FinishedAt = e.Timestamp
			a.uploads.Add(1)
			go func() {
				defer a.uploads.Done()
				a.upload(r)
			}()
		}
		return
	}
	a.mu.Unlock()
}

func (a *ReportArchiver) upload(r *Report) {
	for _, t := range r.Tasks {
		switch t.Status {
		case domain.TaskStatusCompleted:
			r.Completed++
		case domain.TaskStatusFailed:
			r.Failed++
		}
	}

	logger := a.cfg.Logger.WithField("batch_id", r.BatchID)
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		logger.Warnf("encode batch report: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()
	location, err := a.store.PutObject(ctx, bytes.NewReader(body), PutOptions{
		Bucket:      a.cfg.Bucket,
		Key:         ReportKey(a.cfg.KeyPrefix, r.BatchID),
		ContentType: "application/json",
	})
	if err != nil {
		logger.Warnf("archive batch report: %v", err)
		return
	}
	logger.Infof("batch report archived to %s", location)
}
