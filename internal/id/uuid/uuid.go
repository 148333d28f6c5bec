// Package uuid issues the time-ordered identifiers used for crawl runs and
// storage shards.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator issues UUID v7 values, which sort by creation time. The zero
// value is ready to use.
type Generator struct{}

// New returns a Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a fresh v7 identifier.
func (Generator) NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}

// MustID is NewID for callers without an error path. A failed v7 read falls
// back to a random v4 value, so ordering is lost but uniqueness is not.
func (g Generator) MustID() uuid.UUID {
	id, err := g.NewID()
	if err != nil {
		return uuid.New()
	}
	return id
}
