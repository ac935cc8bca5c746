package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/domain"
	"playlist-downloader/internal/metadata"
	"playlist-downloader/internal/playlist"
)

// PlaylistService gates playlist URLs, fetches metadata and keeps the track registry current.
type PlaylistService interface {
	Fetch(ctx context.Context, playlistURL string) (*domain.PlaylistDetails, error)
	Current() (domain.Playlist, []domain.Track, bool)
	Track(id string) (domain.Track, error)
	Tracks(ids []string) ([]domain.Track, error)
}

type playlistService struct {
	provider metadata.Provider
	registry *playlist.Registry
	logger   *logrus.Logger
}

func NewPlaylistService(provider metadata.Provider, registry *playlist.Registry, logger *logrus.Logger) PlaylistService {
	if logger == nil {
		logger = logrus.New()
	}
	return &playlistService{
		provider: provider,
		registry: registry,
		logger:   logger,
	}
}

// Fetch rejects unsupported URLs without touching the network. Provider failures are
// reported as metadata.ErrMetadataFetchFailed and leave the registry unchanged.
func (s *playlistService) Fetch(ctx context.Context, playlistURL string) (*domain.PlaylistDetails, error) {
	playlistURL = strings.TrimSpace(playlistURL)
	if !playlist.IsValidPlaylistURL(playlistURL) {
		return nil, fmt.Errorf("%w: %q", playlist.ErrInvalidPlaylistURL, playlistURL)
	}

	logger := s.logger.WithField("url", playlistURL)
	if id, err := playlist.ExtractPlaylistID(playlistURL); err == nil {
		logger = logger.WithField("playlist_id", id)
	}

	details, err := s.provider.FetchPlaylist(ctx, playlistURL)
	if err != nil {
		logger.Warnf("fetch playlist: %v", err)
		return nil, wrapFetchError(err)
	}

	s.registry.Replace(*details)
	logger.Infof("fetched playlist %q with %d tracks", details.Playlist.Name, len(details.Tracks))
	return details, nil
}

func (s *playlistService) Current() (domain.Playlist, []domain.Track, bool) {
	p, ok := s.registry.Playlist()
	if !ok {
		return domain.Playlist{}, nil, false
	}
	return p, s.registry.Tracks(), true
}

func (s *playlistService) Track(id string) (domain.Track, error) {
	return s.registry.Get(id)
}

// Tracks resolves ids in order; an empty ids list selects the whole registry.
func (s *playlistService) Tracks(ids []string) ([]domain.Track, error) {
	if len(ids) == 0 {
		return s.registry.Tracks(), nil
	}
	return s.registry.Select(ids)
}

func wrapFetchError(err error) error {
	if errors.Is(err, metadata.ErrMetadataFetchFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", metadata.ErrMetadataFetchFailed, err)
}
