package storage

import "errors"

// Sentinel errors shared by all store implementations so callers can
// branch on outcome without knowing which backend is wired.
var (
	// ErrNotFound is returned when a requested record does not exist,
	// or when a conditional update matched no live record.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists is returned when a create collides with an
	// existing record under the same key.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrExhausted is returned when a bounded counter (invite code
	// uses, reward pool) has no capacity left.
	ErrExhausted = errors.New("storage: exhausted")
)
