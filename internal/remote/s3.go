package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
)

// S3Provider stores archives in an S3 bucket or an S3-compatible endpoint
type S3Provider struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	timeout  time.Duration
}

// NewS3Provider creates a new S3Provider instance
func NewS3Provider(cfg config.S3Config, timeout time.Duration) (*S3Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for S3 storage")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
	}
	// Without static keys the SDK falls back to its default credential chain
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Provider{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		timeout:  timeout,
	}, nil
}

// Upload sends localPath to key. Multipart uploads only become visible once
// completed, so no temporary key is used.
func (sp *S3Provider) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return appErrors.NewStorageError("failed to open archive", err)
	}
	defer f.Close()

	_, err = sp.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(sp.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		if ctx.Err() != nil {
			return appErrors.WrapError(ctx.Err(), "upload interrupted")
		}
		return appErrors.NewNetworkError(fmt.Sprintf("failed to upload %s to S3", key), err)
	}
	return nil
}

// Exists reports whether key is stored in the bucket
func (sp *S3Provider) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx, sp.timeout)
	defer cancel()

	_, err := sp.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(sp.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, appErrors.NewNetworkError(fmt.Sprintf("failed to check %s in S3", key), err)
}

// Close is a no-op; the SDK pools its own connections
func (sp *S3Provider) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}
