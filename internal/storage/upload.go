package storage

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
)

// MaxImageBytes caps image uploads at 2MB.
const MaxImageBytes = 2 << 20

var (
	ErrImageTooLarge = errors.New("image exceeds the 2MB limit")
	ErrNotAnImage    = errors.New("file must be an image")
)

// SaveImage validates an uploaded file and writes it to the store under
// key. Size and MIME type are checked before the store is touched.
func SaveImage(ctx context.Context, s Store, key string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotAnImage
	}
	if s == nil {
		return "", ErrNotConfigured
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return s.Put(ctx, key, contentType, f, fh.Size)
}
