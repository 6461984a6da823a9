// Package customid serialises paginator state into component custom ids,
// so long-lived paginators survive process restarts: everything needed to
// rebuild the widget rides inside the button itself.
package customid

import (
	"encoding/json"
	"fmt"
)

const (
	// Version is the current wire format version.
	Version = 1

	// MaxLength is Discord's limit for custom ids.
	MaxLength = 100
)

// State is the decoded content of a stateless component custom id. Field
// names are single letters to stay under the length limit.
type State struct {
	// Version of the wire format.
	Version int `json:"v"`

	// Type tags which paginator owns the component (e.g. "autoroles").
	Type string `json:"t"`

	// CustomID is the base action id (e.g. "next", "prev", "stop").
	CustomID string `json:"cid"`

	// Page is the current page index.
	Page int `json:"p"`

	// AuthorID restricts interaction to one user. Optional.
	AuthorID string `json:"aid,omitempty"`

	// MessageID pins the widget to a message. Optional.
	MessageID string `json:"mid,omitempty"`

	// Kwargs carries small domain-specific values. Optional.
	Kwargs map[string]string `json:"kw,omitempty"`
}

// Encode serialises the state, failing when the result would exceed the
// platform limit.
func Encode(s *State) (string, error) {
	s.Version = Version
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode custom id: %w", err)
	}
	if len(raw) > MaxLength {
		return "", fmt.Errorf("custom id is %d bytes, limit is %d", len(raw), MaxLength)
	}
	return string(raw), nil
}

// MustEncode is Encode panicking on error, for ids built from constants.
func MustEncode(s *State) string {
	out, err := Encode(s)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode parses a custom id produced by Encode. Returns false when the
// input is not a stateless custom id at all; an unknown version is an
// error rather than a guess.
func Decode(customID string) (*State, bool, error) {
	if len(customID) == 0 || customID[0] != '{' {
		return nil, false, nil
	}
	var s State
	if err := json.Unmarshal([]byte(customID), &s); err != nil {
		return nil, false, nil
	}
	if s.Type == "" || s.CustomID == "" {
		return nil, false, nil
	}
	if s.Version != Version {
		return nil, true, fmt.Errorf("unsupported custom id version %d", s.Version)
	}
	return &s, true, nil
}
