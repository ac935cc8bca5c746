package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/domain"
)

const maxErrorBody = 4 << 10

type ClientConfig struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client talks to the playlist metadata endpoint over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *logrus.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

type fetchRequest struct {
	URL string `json:"url"`
}

type fetchResponse struct {
	Playlist struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Image       string `json:"image"`
		TrackCount  int    `json:"trackCount"`
	} `json:"playlist"`
	Tracks []trackPayload `json:"tracks"`
}

// trackPayload accepts the match under either "youtube" or "youtubeMatch";
// youtubeMatch wins when both carry a URL.
type trackPayload struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Artist       string        `json:"artist"`
	Duration     int           `json:"duration"`
	Youtube      *matchPayload `json:"youtube,omitempty"`
	YoutubeMatch *matchPayload `json:"youtubeMatch,omitempty"`
}

func (t trackPayload) match() *domain.Match {
	for _, m := range []*matchPayload{t.YoutubeMatch, t.Youtube} {
		if m != nil && m.URL != "" {
			return &domain.Match{Title: m.Title, URL: m.URL}
		}
	}
	return nil
}

type matchPayload struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FetchPlaylist posts the playlist URL to the endpoint. Every failure, including
// non-2xx responses and undecodable bodies, wraps ErrMetadataFetchFailed.
func (c *Client) FetchPlaylist(ctx context.Context, playlistURL string) (*domain.PlaylistDetails, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("%w: metadata endpoint is not configured", ErrMetadataFetchFailed)
	}

	body, err := json.Marshal(fetchRequest{URL: playlistURL})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrMetadataFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrMetadataFetchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataFetchFailed, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("metadata response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrMetadataFetchFailed, describeFailure(resp))
	}

	var payload fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMetadataFetchFailed, err)
	}

	return payload.toDomain(), nil
}

func describeFailure(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && strings.TrimSpace(e.Error) != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

func (p fetchResponse) toDomain() *domain.PlaylistDetails {
	details := &domain.PlaylistDetails{
		Playlist: domain.Playlist{
			ID:            p.Playlist.ID,
			Name:          p.Playlist.Name,
			Description:   p.Playlist.Description,
			CoverImageURL: p.Playlist.Image,
			TrackCount:    p.Playlist.TrackCount,
		},
		Tracks: make([]domain.Track, len(p.Tracks)),
	}
	for i, t := range p.Tracks {
		details.Tracks[i] = domain.Track{
			ID:         t.ID,
			Name:       t.Name,
			Artist:     t.Artist,
			DurationMs: t.Duration,
			Match:      t.match(),
		}
	}
	if details.Playlist.TrackCount == 0 {
		details.Playlist.TrackCount = len(details.Tracks)
	}
	return details
}

var _ Provider = (*Client)(nil)
