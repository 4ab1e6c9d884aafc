package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned when no object store is wired in.
var ErrNotConfigured = errors.New("object storage not configured")

// Store writes binary objects and returns a durable download URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
}
