package store

import "fmt"

// NotFoundError reports a lookup for a run the store does not hold.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.RunID)
}
