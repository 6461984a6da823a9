// Package uuid puts id generation behind an interface so tests can pin
// the ids that polls and assignments hand out.
package uuid

import (
	"github.com/google/uuid"
)

// Generator produces unique string ids.
type Generator interface {
	New() string
}

// GoogleUUIDGenerator generates random version 4 UUIDs.
type GoogleUUIDGenerator struct{}

// New returns a fresh UUID string.
func (g *GoogleUUIDGenerator) New() string {
	return uuid.New().String()
}

// NewGoogleUUIDGenerator creates the production generator.
func NewGoogleUUIDGenerator() *GoogleUUIDGenerator {
	return &GoogleUUIDGenerator{}
}
