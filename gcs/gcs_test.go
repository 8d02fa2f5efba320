package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"community-help/logger"
	"community-help/services"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	bytes.Buffer
	ctx       context.Context
	closed    bool
	abandoned bool
	closeErr  error
}

// Close mirrors the storage writer: a cancelled context discards the object.
func (w *memWriter) Close() error {
	w.closed = true
	if w.ctx.Err() != nil {
		w.abandoned = true
		return w.ctx.Err()
	}
	return w.closeErr
}

type recorder struct {
	object      string
	contentType string
	w           *memWriter
	removed     []string
	removeErr   error
}

func newTestStore(rec *recorder) *ImageStore {
	return &ImageStore{
		bucket: "community-help-test",
		now:    func() time.Time { return time.Unix(0, 1700000000000000000) },
		open: func(ctx context.Context, object, contentType string) io.WriteCloser {
			rec.object = object
			rec.contentType = contentType
			rec.w.ctx = ctx
			return rec.w
		},
		remove: func(_ context.Context, object string) error {
			rec.removed = append(rec.removed, object)
			return rec.removeErr
		},
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestUpload(t *testing.T) {
	logger.Discard()
	rec := &recorder{w: &memWriter{}}
	store := newTestStore(rec)

	url, err := store.Upload(context.Background(), strings.NewReader("png-bytes"), "image/png", "reports")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^reports/[0-9a-f-]{36}_1700000000000000000\.png$`), rec.object)
	assert.Equal(t, "image/png", rec.contentType)
	assert.Equal(t, "png-bytes", rec.w.String())
	assert.True(t, rec.w.closed)
	assert.False(t, rec.w.abandoned)
	assert.Equal(t, "https://storage.googleapis.com/community-help-test/"+rec.object, url)
}

func TestUploadAbandonsObjectOnReadError(t *testing.T) {
	logger.Discard()
	rec := &recorder{w: &memWriter{}}
	store := newTestStore(rec)

	_, err := store.Upload(context.Background(), io.MultiReader(strings.NewReader("half"), failingReader{}), "image/png", "reports")
	assert.ErrorContains(t, err, "client went away")
	assert.True(t, rec.w.abandoned, "a truncated image must not be committed")
}

func TestDelete(t *testing.T) {
	logger.Discard()
	rec := &recorder{w: &memWriter{}}
	store := newTestStore(rec)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "https://storage.googleapis.com/community-help-test/resolutions/abc_1.png"))
	assert.Equal(t, []string{"resolutions/abc_1.png"}, rec.removed)

	assert.Error(t, store.Delete(ctx, "https://storage.googleapis.com/other-bucket/resolutions/abc_1.png"))
	assert.Len(t, rec.removed, 1)

	rec.removeErr = storage.ErrObjectNotExist
	assert.NoError(t, store.Delete(ctx, "https://storage.googleapis.com/community-help-test/reports/gone.png"))

	rec.removeErr = errors.New("googleapi: Error 403")
	assert.ErrorContains(t, store.Delete(ctx, "https://storage.googleapis.com/community-help-test/reports/x.png"), "403")
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	rec := &recorder{w: &memWriter{}}
	store := newTestStore(rec)

	_, err := store.Upload(context.Background(), strings.NewReader("%PDF"), "application/pdf", "reports")
	assert.ErrorIs(t, err, services.ErrUnsupportedImage)
	assert.Empty(t, rec.object)
}

func TestUploadReportsCloseError(t *testing.T) {
	logger.Discard()
	rec := &recorder{w: &memWriter{closeErr: errors.New("googleapi: Error 403")}}
	store := newTestStore(rec)

	_, err := store.Upload(context.Background(), strings.NewReader("x"), "image/jpeg", "resolutions")
	assert.ErrorContains(t, err, "403")
}
