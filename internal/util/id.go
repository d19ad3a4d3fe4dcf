package util

import "github.com/google/uuid"

// NewID generates a unique identifier for runs and tool-use correlation.
func NewID() string { return uuid.NewString() }
