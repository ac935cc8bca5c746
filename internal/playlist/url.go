package playlist

import (
	"errors"
	"strings"
)

// PlaylistURLMarker is the substring that identifies a supported playlist URL.
const PlaylistURLMarker = "open.spotify.com/playlist/"

var (
	ErrInvalidPlaylistURL = errors.New("invalid playlist url")
	ErrTrackNotFound      = errors.New("track not found")
)

// IsValidPlaylistURL checks that url is non-empty and points at a supported playlist.
// It is a precondition for fetching, not a structural URL check.
func IsValidPlaylistURL(url string) bool {
	url = strings.TrimSpace(url)
	return url != "" && strings.Contains(url, PlaylistURLMarker)
}

// ExtractPlaylistID returns the identifier that follows "playlist/", without any query string.
func ExtractPlaylistID(url string) (string, error) {
	_, rest, ok := strings.Cut(strings.TrimSpace(url), "playlist/")
	if !ok {
		return "", ErrInvalidPlaylistURL
	}
	id, _, _ := strings.Cut(rest, "?")
	id = strings.Trim(id, "/")
	if id == "" {
		return "", ErrInvalidPlaylistURL
	}
	return id, nil
}
