// Package files serves uploaded submission files and defines the blob store
// the application layer writes uploads to.
package files

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by a Store when the key does not exist
var ErrObjectNotFound = errors.New("object not found")

// Object is an open blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store persists uploaded blobs.
// It is implemented by the infrastructure layer (S3-compatible storage or memory).
type Store interface {
	// Upload stores the body under key and returns the URL recorded for it
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (*Object, error)
	// Delete is idempotent; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
