package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
)

// LocalProvider stores objects below a directory, typically a NAS mount
type LocalProvider struct {
	basePath string
}

// NewLocalProvider creates a LocalProvider. The base directory is not created
// here; Upload creates what it needs, so dry runs leave the tree untouched.
func NewLocalProvider(cfg config.LocalConfig) (*LocalProvider, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("base path is required for local storage")
	}
	info, err := os.Stat(cfg.BasePath)
	switch {
	case err == nil && !info.IsDir():
		return nil, appErrors.NewConfigurationError("local base path is not a directory", nil).
			WithContext("path", cfg.BasePath)
	case err != nil && !os.IsNotExist(err):
		return nil, appErrors.NewStorageError("failed to stat local base path", err).
			WithContext("path", cfg.BasePath)
	}
	return &LocalProvider{basePath: cfg.BasePath}, nil
}

func (lp *LocalProvider) path(key string) string {
	return filepath.Join(lp.basePath, filepath.FromSlash(key))
}

// Upload copies localPath to key via key.part
func (lp *LocalProvider) Upload(ctx context.Context, localPath, key string) (retErr error) {
	target := lp.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return appErrors.NewStorageError("failed to create remote directory", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return appErrors.NewStorageError("failed to open archive", err)
	}
	defer src.Close()

	part := target + PartSuffix
	dst, err := os.Create(part)
	if err != nil {
		return appErrors.NewStorageError("failed to create remote file", err)
	}
	defer func() {
		if retErr != nil {
			dst.Close()
			os.Remove(part)
		}
	}()

	if _, err := io.Copy(dst, &contextReader{ctx: ctx, r: src}); err != nil {
		return appErrors.WrapError(err, "failed to write remote file")
	}
	if err := dst.Sync(); err != nil {
		return appErrors.NewStorageError("failed to sync remote file", err)
	}
	if err := dst.Close(); err != nil {
		return appErrors.NewStorageError("failed to close remote file", err)
	}

	if err := os.Rename(part, target); err != nil {
		return appErrors.NewStorageError("failed to finalize remote file", err)
	}
	return nil
}

// Exists reports whether key is stored
func (lp *LocalProvider) Exists(ctx context.Context, key string) (bool, error) {
	info, err := os.Stat(lp.path(key))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, appErrors.NewStorageError("failed to stat remote file", err)
}

// Close is a no-op
func (lp *LocalProvider) Close() error {
	return nil
}
