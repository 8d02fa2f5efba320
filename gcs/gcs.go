package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"community-help/logger"
	"community-help/services"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const publicBaseURL = "https://storage.googleapis.com"

type openFunc func(ctx context.Context, object, contentType string) io.WriteCloser

// ImageStore uploads report photos to a Cloud Storage bucket.
type ImageStore struct {
	client *storage.Client
	bucket string
	open   openFunc
	remove func(ctx context.Context, object string) error
	now    func() time.Time
}

// NewImageStore connects to Cloud Storage and checks the bucket is reachable.
// With an empty credentialsFile the default application credentials are used.
func NewImageStore(ctx context.Context, bucket, credentialsFile string) (*ImageStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to Cloud Storage: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("access bucket %s: %w", bucket, err)
	}
	logger.Log.WithField("bucket", bucket).Info("Cloud Storage bucket ready")

	s := &ImageStore{client: client, bucket: bucket, now: time.Now}
	s.open = func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	s.remove = func(ctx context.Context, object string) error {
		return client.Bucket(bucket).Object(object).Delete(ctx)
	}
	return s, nil
}

func (s *ImageStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Upload stores r under folder and returns its public URL. Object names
// are "<folder>/<uuid>_<unixnano>.<ext>" so they never collide.
func (s *ImageStore) Upload(ctx context.Context, r io.Reader, contentType, folder string) (string, error) {
	ext, err := services.ImageExtension(contentType)
	if err != nil {
		return "", err
	}
	object := fmt.Sprintf("%s/%s_%d.%s", folder, uuid.NewString(), s.now().UnixNano(), ext)
	log := logger.Log.WithFields(logrus.Fields{"bucket": s.bucket, "object": object})

	// Cancelling the writer's context is the only way to abandon the object;
	// Close would commit whatever was copied.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.open(ctx, object, contentType)
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		log.WithError(err).Error("Failed to copy image to Cloud Storage")
		return "", fmt.Errorf("copy image to bucket: %w", err)
	}
	if err := w.Close(); err != nil {
		log.WithError(err).Error("Failed to finish Cloud Storage upload")
		return "", fmt.Errorf("finish upload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", publicBaseURL, s.bucket, object)
	log.Debug("Image uploaded")
	return url, nil
}

// Delete removes an object Upload stored, given its public URL. A missing
// object is not an error.
func (s *ImageStore) Delete(ctx context.Context, url string) error {
	object := strings.TrimPrefix(url, fmt.Sprintf("%s/%s/", publicBaseURL, s.bucket))
	if object == url || object == "" {
		return fmt.Errorf("%q is not an object in bucket %s", url, s.bucket)
	}
	if err := s.remove(ctx, object); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", object, err)
	}
	logger.Log.WithFields(logrus.Fields{"bucket": s.bucket, "object": object}).Info("Image deleted")
	return nil
}
