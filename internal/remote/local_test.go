package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
)

func writeArchive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "20250101.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewLocalProvider(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nas", "backups")

	provider, err := NewLocalProvider(config.LocalConfig{BasePath: base})
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NoDirExists(t, base, "constructor must not create the base directory")

	_, err = NewLocalProvider(config.LocalConfig{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = NewLocalProvider(config.LocalConfig{BasePath: file})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrorTypeConfiguration, appErrors.GetErrorType(err))
}

func TestLocalProvider_UploadCreatesMissingBase(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "nas", "backups")
	provider, err := NewLocalProvider(config.LocalConfig{BasePath: base})
	require.NoError(t, err)

	exists, err := provider.Exists(ctx, Key("office-1", "daily", "20250101.zip"))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, provider.Upload(ctx, writeArchive(t, "data"), Key("office-1", "daily", "20250101.zip")))
	assert.FileExists(t, filepath.Join(base, "office-1", "daily", "20250101.zip"))
}

func TestLocalProvider_UploadAndExists(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	provider, err := NewLocalProvider(config.LocalConfig{BasePath: base})
	require.NoError(t, err)

	key := Key("office-1", "daily", "20250101.zip")

	exists, err := provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, provider.Upload(ctx, writeArchive(t, "first"), key))

	exists, err = provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	target := filepath.Join(base, "office-1", "daily", "20250101.zip")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.NoFileExists(t, target+PartSuffix)

	// Uploading again replaces the object
	require.NoError(t, provider.Upload(ctx, writeArchive(t, "second"), key))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	assert.NoError(t, provider.Close())
}

func TestLocalProvider_ExistsIgnoresDirectories(t *testing.T) {
	base := t.TempDir()
	provider, err := NewLocalProvider(config.LocalConfig{BasePath: base})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "office-1", "daily", "20250101.zip"), 0755))

	exists, err := provider.Exists(context.Background(), "office-1/daily/20250101.zip")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalProvider_UploadCanceled(t *testing.T) {
	base := t.TempDir()
	provider, err := NewLocalProvider(config.LocalConfig{BasePath: base})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	key := "office-1/daily/20250101.zip"
	err = provider.Upload(ctx, writeArchive(t, "data"), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	target := filepath.Join(base, filepath.FromSlash(key))
	assert.NoFileExists(t, target)
	assert.NoFileExists(t, target+PartSuffix)
}

func TestLocalProvider_UploadMissingSource(t *testing.T) {
	provider, err := NewLocalProvider(config.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	err = provider.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), "a/b.zip")
	assert.Error(t, err)
}
