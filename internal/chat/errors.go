package chat

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTurn     = errors.New("message or image is required")
	ErrRoomNotFound  = errors.New("chat room not found")
	ErrPersonaLocked = errors.New("persona cannot change once the room has messages")
	ErrInvalidRole   = errors.New("role must be user or assistant")
	ErrJobNotFound   = errors.New("job not found")

	errNoImageSource = errors.New("no image source configured")
)

// ErrJobInterrupted wraps a job error caused by the caller's context ending.
// The job is back in queued.
var ErrJobInterrupted = errors.New("job interrupted")

// ImageLoadError means the current turn's image could not be read. The
// completion service is not called.
type ImageLoadError struct {
	Ref string
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %q: %v", e.Ref, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }
