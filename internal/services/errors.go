package services

import "errors"

// ErrInvalid marks malformed input rejected before it reaches storage.
// Callers wrap it with a message: fmt.Errorf("%w: ...", ErrInvalid).
var ErrInvalid = errors.New("invalid input")
