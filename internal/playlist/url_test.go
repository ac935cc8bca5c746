package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPlaylistURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "empty", url: "", want: false},
		{name: "whitespace only", url: "   ", want: false},
		{name: "playlist url", url: "https://open.spotify.com/playlist/abc123", want: true},
		{name: "playlist url with query", url: "https://open.spotify.com/playlist/abc123?si=xyz", want: true},
		{name: "surrounding whitespace", url: "  https://open.spotify.com/playlist/abc123  ", want: true},
		{name: "other host", url: "https://example.com/foo", want: false},
		{name: "album url", url: "https://open.spotify.com/album/abc123", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPlaylistURL(tt.url))
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	id, err := ExtractPlaylistID("https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc")
	require.NoError(t, err)
	assert.Equal(t, "37i9dQZF1DXcBWIGoYBM5M", id)

	id, err = ExtractPlaylistID("https://open.spotify.com/playlist/abc123/")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = ExtractPlaylistID("https://example.com/foo")
	assert.ErrorIs(t, err, ErrInvalidPlaylistURL)

	_, err = ExtractPlaylistID("https://open.spotify.com/playlist/?si=abc")
	assert.ErrorIs(t, err, ErrInvalidPlaylistURL)
}
