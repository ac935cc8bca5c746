package http

import (
	"time"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/downloader"
	"playlist-downloader/internal/storage"
)

type PlaylistResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	TrackCount  int    `json:"trackCount"`
}

type TrackResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artist      string             `json:"artist"`
	DurationMs  int                `json:"duration_ms"`
	MatchStatus domain.MatchStatus `json:"match_status"`
	MatchTitle  string             `json:"match_title"`
	MatchURL    string             `json:"match_url,omitempty"`
}

type PlaylistDetailsResponse struct {
	Playlist *PlaylistResponse `json:"playlist"`
	Tracks   []TrackResponse   `json:"tracks"`
}

type TaskResponse struct {
	ID         string            `json:"id"`
	BatchID    string            `json:"batch_id"`
	Position   int               `json:"position"`
	Track      TrackResponse     `json:"track"`
	Status     domain.TaskStatus `json:"status"`
	Progress   int               `json:"progress"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  string            `json:"created_at"`
	StartedAt  *string           `json:"started_at,omitempty"`
	FinishedAt *string           `json:"finished_at,omitempty"`
}

type BatchResponse struct {
	ID         string             `json:"id"`
	Kind       domain.BatchKind   `json:"kind"`
	Status     domain.BatchStatus `json:"status"`
	Completed  int                `json:"completed"`
	Failed     int                `json:"failed"`
	StartedAt  string             `json:"started_at"`
	FinishedAt *string            `json:"finished_at,omitempty"`
	Tasks      []TaskResponse     `json:"tasks"`
}

type StateResponse struct {
	Busy    bool            `json:"busy"`
	Batch   *BatchResponse  `json:"batch,omitempty"`
	Singles []BatchResponse `json:"singles"`
}

type EventResponse struct {
	Type        domain.EventType   `json:"type"`
	BatchID     string             `json:"batch_id"`
	BatchKind   domain.BatchKind   `json:"batch_kind"`
	BatchStatus domain.BatchStatus `json:"batch_status"`
	TaskID      string             `json:"task_id,omitempty"`
	TrackID     string             `json:"track_id,omitempty"`
	Position    *int               `json:"position,omitempty"`
	Status      domain.TaskStatus  `json:"status,omitempty"`
	Progress    *int               `json:"progress,omitempty"`
	Error       string             `json:"error,omitempty"`
	Timestamp   string             `json:"timestamp"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func playlistToResponse(p domain.Playlist, tracks []domain.Track) PlaylistDetailsResponse {
	resp := PlaylistDetailsResponse{
		Playlist: &PlaylistResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Image:       p.CoverImageURL,
			TrackCount:  p.TrackCount,
		},
		Tracks: make([]TrackResponse, len(tracks)),
	}
	for i := range tracks {
		resp.Tracks[i] = trackToResponse(tracks[i])
	}
	return resp
}

func trackToResponse(t domain.Track) TrackResponse {
	resp := TrackResponse{
		ID:          t.ID,
		Name:        t.Name,
		Artist:      t.Artist,
		DurationMs:  t.DurationMs,
		MatchStatus: t.MatchStatus(),
		MatchTitle:  domain.NotMatchedTitle,
	}
	if resp.MatchStatus == domain.MatchStatusMatched {
		resp.MatchTitle = t.Match.Title
		resp.MatchURL = t.Match.URL
	}
	return resp
}

func taskToResponse(task domain.DownloadTask) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID,
		BatchID:   task.BatchID,
		Position:  task.Position,
		Track:     trackToResponse(task.Track),
		Status:    task.Status,
		Progress:  task.Progress,
		Error:     task.Error,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
	resp.StartedAt = formatTime(task.StartedAt)
	resp.FinishedAt = formatTime(task.FinishedAt)
	return resp
}

func batchToResponse(batch domain.BatchRun) BatchResponse {
	completed, failed := batch.Counts()
	resp := BatchResponse{
		ID:         batch.ID,
		Kind:       batch.Kind,
		Status:     batch.Status,
		Completed:  completed,
		Failed:     failed,
		StartedAt:  batch.StartedAt.Format(time.RFC3339),
		FinishedAt: formatTime(batch.FinishedAt),
		Tasks:      make([]TaskResponse, len(batch.Tasks)),
	}
	for i, task := range batch.Tasks {
		resp.Tasks[i] = taskToResponse(*task)
	}
	return resp
}

func stateToResponse(state downloader.OrchestratorState) StateResponse {
	resp := StateResponse{
		Busy:    state.Busy,
		Singles: make([]BatchResponse, len(state.Singles)),
	}
	if state.Batch != nil {
		b := batchToResponse(*state.Batch)
		resp.Batch = &b
	}
	for i, single := range state.Singles {
		resp.Singles[i] = batchToResponse(*single)
	}
	return resp
}

func eventToResponse(e domain.Event) EventResponse {
	resp := EventResponse{
		Type:        e.Type,
		BatchID:     e.BatchID,
		BatchKind:   e.BatchKind,
		BatchStatus: e.BatchStatus,
		Timestamp:   e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.IsTaskEvent() {
		position, progress := e.Position, e.Progress
		resp.TaskID = e.TaskID
		resp.TrackID = e.Track.ID
		resp.Position = &position
		resp.Status = e.Status
		resp.Progress = &progress
		resp.Error = e.Error
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
