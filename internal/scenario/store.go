package scenario

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no scenario has the requested id
	ErrNotFound = errors.New("scenario not found")
	// ErrInvalidID is returned when an id is not a well-formed scenario id
	ErrInvalidID = errors.New("invalid scenario id")
	// ErrInvalidDocument is returned when a scenario document cannot be parsed
	ErrInvalidDocument = errors.New("invalid scenario document")
)

// Finder resolves scenario ids. It is all the session manager needs.
type Finder interface {
	Find(ctx context.Context, id string) (*Scenario, error)
}

// Store persists scenario records
type Store interface {
	Finder
	Create(ctx context.Context, s *Scenario) error
	List(ctx context.Context) ([]*Scenario, error)
	Close() error
}
