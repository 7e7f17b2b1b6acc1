package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
)

const azureBlockSize = 4 * 1024 * 1024

// AzureProvider stores archives as block blobs in one container
type AzureProvider struct {
	containerURL azblob.ContainerURL
	timeout      time.Duration
}

// NewAzureProvider creates a new AzureProvider instance
func NewAzureProvider(cfg config.AzureConfig, timeout time.Duration) (*AzureProvider, error) {
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("container name is required for Azure storage")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credentials: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure service URL: %w", err)
	}

	return &AzureProvider{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(cfg.ContainerName),
		timeout:      timeout,
	}, nil
}

// Upload stages blocks and commits the block list, so a blob appears
// only once the whole file has been sent.
func (ap *AzureProvider) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return appErrors.NewStorageError("failed to open archive", err)
	}
	defer f.Close()

	_, err = azblob.UploadFileToBlockBlob(ctx, f, ap.containerURL.NewBlockBlobURL(key), azblob.UploadToBlockBlobOptions{
		BlockSize:   azureBlockSize,
		Parallelism: 4,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return appErrors.WrapError(ctx.Err(), "upload interrupted")
		}
		return appErrors.NewNetworkError(fmt.Sprintf("failed to upload %s to Azure", key), err)
	}
	return nil
}

// Exists reports whether key is stored in the container
func (ap *AzureProvider) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx, ap.timeout)
	defer cancel()

	blobURL := ap.containerURL.NewBlobURL(key)
	_, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err == nil {
		return true, nil
	}
	if isAzureNotFound(err) {
		return false, nil
	}
	return false, appErrors.NewNetworkError(fmt.Sprintf("failed to check %s in Azure", key), err)
}

// Close is a no-op
func (ap *AzureProvider) Close() error {
	return nil
}

func isAzureNotFound(err error) bool {
	var stgErr azblob.StorageError
	if !errors.As(err, &stgErr) {
		return false
	}
	if stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
		return true
	}
	// HEAD responses carry no error body
	resp := stgErr.Response()
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
