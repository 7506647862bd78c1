// Package uuidx generates time-ordered identifiers.
package uuidx

import "github.com/google/uuid"

// New returns a fresh v7 UUID. v7 ids sort by creation time, which keeps
// run ids and synthesized call ids roughly chronological in logs.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a fresh v7 UUID in canonical string form.
func NewString() string {
	return New().String()
}
