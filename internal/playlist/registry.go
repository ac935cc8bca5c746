package playlist

import (
	"fmt"
	"sync"

	"playlist-downloader/internal/domain"
)

// Registry holds the tracks of the most recently fetched playlist, in playlist order.
type Registry struct {
	mu       sync.RWMutex
	playlist *domain.Playlist
	tracks   []domain.Track
	index    map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Replace swaps in a freshly fetched playlist. Earlier tracks are forgotten.
func (r *Registry) Replace(details domain.PlaylistDetails) {
	tracks := make([]domain.Track, len(details.Tracks))
	copy(tracks, details.Tracks)
	index := make(map[string]int, len(tracks))
	for i, track := range tracks {
		if _, dup := index[track.ID]; !dup {
			index[track.ID] = i
		}
	}
	p := details.Playlist

	r.mu.Lock()
	r.playlist = &p
	r.tracks = tracks
	r.index = index
	r.mu.Unlock()
}

func (r *Registry) Playlist() (domain.Playlist, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.playlist == nil {
		return domain.Playlist{}, false
	}
	return *r.playlist, true
}

// Tracks returns a copy of the registered tracks in order.
func (r *Registry) Tracks() []domain.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Track, len(r.tracks))
	copy(out, r.tracks)
	return out
}

func (r *Registry) Get(id string) (domain.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return domain.Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return r.tracks[i], nil
}

// Select resolves ids to tracks, keeping the order of ids.
func (r *Registry) Select(ids []string) ([]domain.Track, error) {
	out := make([]domain.Track, 0, len(ids))
	for _, id := range ids {
		track, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, track)
	}
	return out, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}
