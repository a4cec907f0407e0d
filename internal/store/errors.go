package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint
// (duplicate QR id or duplicate user email).
var ErrConflict = errors.New("conflict")
