package rotation

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "backup-rotator/internal/errors"
)

func TestAcquireLock(t *testing.T) {
	root := filepath.Join(t.TempDir(), "local")

	lock, err := AcquireLock(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, LockFileName), lock.Path())
	assert.FileExists(t, lock.Path())

	_, err = AcquireLock(root)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrorTypeLock, appErrors.GetErrorType(err))
	assert.False(t, appErrors.IsRecoverableError(err))

	require.NoError(t, lock.Release())

	again, err := AcquireLock(root)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}
