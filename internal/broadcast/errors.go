package broadcast

import (
	"errors"
	"fmt"
)

// ErrTransportNotInitialized means no transport has been attached yet.
// Fatal for the calling operation, never retried internally.
var ErrTransportNotInitialized = errors.New("transport not initialized")

// FailedError wraps a transport failure during a room broadcast.
// The cache is left untouched when this is returned.
type FailedError struct {
	RoomID string
	Err    error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("room state broadcast failed for %s: %v", e.RoomID, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }
