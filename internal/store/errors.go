package store

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write hits a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrLastActiveAdmin is returned when a guarded user mutation would leave
	// the system without an active admin. Nothing is written.
	ErrLastActiveAdmin = errors.New("last active admin")
	// ErrStaleState is returned by a compare-and-swap transition whose expected
	// status no longer matches.
	ErrStaleState = errors.New("stale state")
)
