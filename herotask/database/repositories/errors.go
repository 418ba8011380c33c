package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a guarded update matched no rows because
	// another writer got there first.
	ErrConflict = errors.New("concurrent update conflict")
)
