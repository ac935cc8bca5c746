package metadata

import (
	"context"
	"errors"

	"playlist-downloader/internal/domain"
)

var ErrMetadataFetchFailed = errors.New("metadata fetch failed")

// Provider resolves a playlist URL into playlist details and its ordered tracks.
type Provider interface {
	FetchPlaylist(ctx context.Context, playlistURL string) (*domain.PlaylistDetails, error)
}
