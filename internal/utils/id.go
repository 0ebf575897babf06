package utils

import "github.com/google/uuid"

// NewID returns a random identifier used as a client reference for
// optimistic sends and for naming push channels.
func NewID() string {
	return uuid.NewString()
}
