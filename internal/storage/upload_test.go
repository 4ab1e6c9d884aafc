package storage_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitasklabs/unitask/internal/storage"
)

// makeFileHeader builds a parsed multipart file header the way echo's
// FormFile would hand it to a handler.
func makeFileHeader(t *testing.T, filename, contentType string, size int) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), size))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, fh, err := req.FormFile("file")
	require.NoError(t, err)
	return fh
}

func TestSaveImageStoresValidUpload(t *testing.T) {
	store := storage.NewMemoryStore()
	fh := makeFileHeader(t, "avatar.png", "image/png", 1900*1024)

	url, err := storage.SaveImage(context.Background(), store, "avatars/u1", fh)
	require.NoError(t, err)
	assert.Equal(t, "mem://avatars/u1", url)
	assert.Len(t, store.Objects["avatars/u1"], 1900*1024)
}

func TestSaveImageRejectsOversizedFile(t *testing.T) {
	store := storage.NewMemoryStore()
	fh := makeFileHeader(t, "big.png", "image/png", 3*1024*1024)

	_, err := storage.SaveImage(context.Background(), store, "avatars/u1", fh)
	require.ErrorIs(t, err, storage.ErrImageTooLarge)
	assert.Empty(t, store.Objects)
}

func TestSaveImageRejectsNonImage(t *testing.T) {
	store := storage.NewMemoryStore()
	fh := makeFileHeader(t, "notes.pdf", "application/pdf", 1024)

	_, err := storage.SaveImage(context.Background(), store, "avatars/u1", fh)
	require.ErrorIs(t, err, storage.ErrNotAnImage)
	assert.Empty(t, store.Objects)
}

func TestSaveImageWithoutConfiguredStore(t *testing.T) {
	fh := makeFileHeader(t, "avatar.png", "image/png", 1024)

	_, err := storage.SaveImage(context.Background(), nil, "avatars/u1", fh)
	require.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestSaveImageValidatesBeforeStore(t *testing.T) {
	// Oversized upload with no store still reports the size problem,
	// not a configuration one.
	fh := makeFileHeader(t, "big.png", "image/png", 3*1024*1024)

	_, err := storage.SaveImage(context.Background(), nil, "avatars/u1", fh)
	require.ErrorIs(t, err, storage.ErrImageTooLarge)
}
