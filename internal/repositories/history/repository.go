package history

import (
	"context"
	"errors"
	"time"
)

// Entry is one played track in a guild's history.
type Entry struct {
	Title    string    `json:"title"`
	URI      string    `json:"uri"`
	PlayedAt time.Time `json:"played_at"`
}

// ErrNoMatch is returned when no history entry matches a search.
var ErrNoMatch = errors.New("no matching history entry")

// Repository stores the per-guild play history. It backs both the
// history resolver strategy and history autocomplete.
type Repository interface {
	// Record prepends a play; the history is capped.
	Record(ctx context.Context, guildID, title, uri string) error

	// Search finds the most recent entry whose title contains the given
	// substring and returns its URI.
	Search(ctx context.Context, guildID, title string) (string, error)

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, guildID string, limit int) ([]Entry, error)
}
