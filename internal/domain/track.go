package domain

// MatchStatus reports whether a track has a resolved external media reference.
type MatchStatus string

const (
	MatchStatusUnmatched MatchStatus = "unmatched"
	MatchStatusMatched   MatchStatus = "matched"
)

// NotMatchedTitle is shown in place of a match title for unmatched tracks.
const NotMatchedTitle = "Not matched yet"

// Match is the external media a track was matched to.
type Match struct {
	Title string
	URL   string
}

// Track is a single playlist entry as returned by the metadata provider.
type Track struct {
	ID         string
	Name       string
	Artist     string
	DurationMs int
	Match      *Match
}

func (t Track) MatchStatus() MatchStatus {
	if t.Match == nil || t.Match.URL == "" {
		return MatchStatusUnmatched
	}
	return MatchStatusMatched
}

// Label returns "name - artist", the form used in progress rows and logs.
func (t Track) Label() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Name + " - " + t.Artist
}

// Playlist describes the playlist a set of tracks was fetched from.
type Playlist struct {
	ID            string
	Name          string
	Description   string
	CoverImageURL string
	TrackCount    int
}

// PlaylistDetails is a playlist together with its ordered tracks.
type PlaylistDetails struct {
	Playlist Playlist
	Tracks   []Track
}
