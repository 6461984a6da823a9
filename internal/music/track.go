package music

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
)

// Track is one queue entry: a playable track plus who asked for it.
// Tracks are values; two are the same entry iff URI and requester match.
type Track struct {
	Source      lavalink.Track
	RequesterID string
}

// Equal reports whether two tracks are the same queue entry.
func (t Track) Equal(other Track) bool {
	return t.Source.Info.URI == other.Source.Info.URI && t.RequesterID == other.RequesterID
}

// Title returns the track title.
func (t Track) Title() string { return t.Source.Info.Title }

// URI returns the track URI.
func (t Track) URI() string { return t.Source.Info.URI }

// Length returns the track duration.
func (t Track) Length() time.Duration {
	return time.Duration(t.Source.Info.Length) * time.Millisecond
}

// FormatDuration renders a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// queue is the ordered track list. Index 0 is the currently playing
// track. Methods are not safe for concurrent use; the Player's mutex
// guards them.
type queue struct {
	tracks []Track
}

func (q *queue) Len() int { return len(q.tracks) }

func (q *queue) Empty() bool { return len(q.tracks) == 0 }

// Current returns the playing track.
func (q *queue) Current() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	return q.tracks[0], true
}

// Append adds a track at the tail.
func (q *queue) Append(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// InsertAt inserts at a 1-based position, clamped to [1, len].
func (q *queue) InsertAt(position int, track Track) {
	if position < 1 {
		position = 1
	}
	if position > len(q.tracks) {
		q.tracks = append(q.tracks, track)
		return
	}
	q.tracks = append(q.tracks[:position], q.tracks[position-1:]...)
	q.tracks[position] = track
}

// Prepend puts a track at the head, making it the current track.
func (q *queue) Prepend(track Track) {
	q.tracks = append([]Track{track}, q.tracks...)
}

// Advance drops n tracks from the head and returns the new current
// track if any.
func (q *queue) Advance(n int) (Track, bool) {
	if n < 1 {
		n = 1
	}
	if n >= len(q.tracks) {
		q.tracks = q.tracks[:0]
		return Track{}, false
	}
	q.tracks = q.tracks[n:]
	return q.tracks[0], true
}

// Clear empties the queue.
func (q *queue) Clear() {
	q.tracks = q.tracks[:0]
}

// Shuffle reorders everything except the current track.
func (q *queue) Shuffle() {
	if len(q.tracks) < 3 {
		return
	}
	rest := q.tracks[1:]
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
}

// Snapshot returns a copy of the queue.
func (q *queue) Snapshot() []Track {
	out := make([]Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}
