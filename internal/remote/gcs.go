package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
)

// GCSProvider stores archives in a Google Cloud Storage bucket
type GCSProvider struct {
	client  *storage.Client
	bucket  string
	timeout time.Duration
}

// NewGCSProvider creates a new GCSProvider instance
func NewGCSProvider(ctx context.Context, cfg config.GCSConfig, timeout time.Duration) (*GCSProvider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for GCS storage")
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSProvider{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: timeout,
	}, nil
}

// Upload streams localPath to key. The object is only created when the
// writer closes cleanly.
func (gp *GCSProvider) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return appErrors.NewStorageError("failed to open archive", err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := gp.client.Bucket(gp.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, f); err != nil {
		// Canceling the writer's context aborts the upload
		cancel()
		w.Close()
		return appErrors.WrapError(err, fmt.Sprintf("failed to upload %s to GCS", key))
	}
	if err := w.Close(); err != nil {
		if ctx.Err() != nil {
			return appErrors.WrapError(ctx.Err(), "upload interrupted")
		}
		return appErrors.NewNetworkError(fmt.Sprintf("failed to upload %s to GCS", key), err)
	}
	return nil
}

// Exists reports whether key is stored in the bucket
func (gp *GCSProvider) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx, gp.timeout)
	defer cancel()

	_, err := gp.client.Bucket(gp.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, appErrors.NewNetworkError(fmt.Sprintf("failed to check %s in GCS", key), err)
}

// Close closes the GCS client
func (gp *GCSProvider) Close() error {
	return gp.client.Close()
}
