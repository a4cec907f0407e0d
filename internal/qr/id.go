package qr

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a globally unique opaque identifier (random UUID v4).
// Entropy-source exhaustion is unrecoverable and panics.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		panic(fmt.Sprintf("qr: entropy source failed: %v", err))
	}
	return id.String()
}
