package lavalink

import "fmt"

// TrackInfo is the metadata Lavalink decodes for a track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	URI        string `json:"uri"`
	Length     int64  `json:"length"` // milliseconds
	Position   int64  `json:"position"`
	IsStream   bool   `json:"isStream"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// Track pairs Lavalink's opaque encoded form with its decoded info.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// LoadKind classifies a track-load response.
type LoadKind string

const (
	LoadKindTrack    LoadKind = "track"
	LoadKindPlaylist LoadKind = "playlist"
	LoadKindSearch   LoadKind = "search"
	LoadKindEmpty    LoadKind = "empty"
	LoadKindError    LoadKind = "error"
)

// PlaylistInfo names a loaded playlist.
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// LoadResult is the outcome of a track-load call: a single track, an
// ordered playlist, search candidates, nothing, or a load failure.
type LoadResult struct {
	Kind     LoadKind
	Tracks   []Track
	Playlist *PlaylistInfo
	Error    *LoadError
}

// LoadError describes a failed load.
type LoadError struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("lavalink load failed (%s): %s", e.Severity, e.Message)
}

// EventType enumerates the gateway events the player consumes.
type EventType string

const (
	EventReady          EventType = "ready"
	EventTrackStart     EventType = "track-start"
	EventTrackEnd       EventType = "track-end"
	EventTrackException EventType = "track-exception"
	EventPlayerUpdate   EventType = "player-update"
)

// Event is one decoded gateway event.
type Event struct {
	Type     EventType
	GuildID  string
	Track    *Track
	Reason   string // track-end reason, e.g. "finished", "replaced"
	Error    string // track-exception message
	Position int64  // playhead in milliseconds, player-update only
}

// playerUpdate is the REST body for mutating a guild player.
type playerUpdate struct {
	EncodedTrack *string      `json:"encodedTrack,omitempty"`
	Position     *int64       `json:"position,omitempty"`
	Paused       *bool        `json:"paused,omitempty"`
	Volume       *int         `json:"volume,omitempty"`
	Voice        *voiceUpdate `json:"voice,omitempty"`
}

type voiceUpdate struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}
