package domain

import (
	"context"
	"fmt"
)

// BackendKind identifies which generation backend produced an error.
type BackendKind string

const (
	BackendText  BackendKind = "text"
	BackendImage BackendKind = "image"
)

// BackendError is the single error type the generation gateway surfaces.
// It wraps whatever went wrong at the backend (network, quota, malformed
// response); callers turn it into a user-safe apology, never raw detail.
type BackendError struct {
	Kind BackendKind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ImageAck is the reduced outcome of an image generation. The backend may
// return binary data, but with no storage integration there is nothing to
// host it on, so the pipeline only ever reports whether generation happened.
type ImageAck struct {
	Generated   bool
	Deliverable bool // always false until a storage collaborator exists
}

// TextBackend produces a completion for a fully built prompt.
type TextBackend interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageBackend generates an image for a subject and reports whether any
// image data came back.
type ImageBackend interface {
	GenerateImage(ctx context.Context, subject string) (bool, error)
}
