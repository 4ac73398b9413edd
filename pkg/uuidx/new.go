// Package uuidx issues the time-ordered ids that tag runs, turns and
// published events.
package uuidx

import "github.com/google/uuid"

// New returns a version 7 UUID. Ids from one process sort in the order they
// were issued, so a run's events can be ordered by turn id alone.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New in canonical text form.
func NewString() string {
	return New().String()
}
