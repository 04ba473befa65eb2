package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_TryLock_Acquires(t *testing.T) {
	// Given: a fresh lock directory
	lock := NewRunLock(t.TempDir())

	// When: trying to lock
	acquired, err := lock.TryLock()

	// Then: the lock is acquired
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, lock.IsLocked())

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())
}

func TestRunLock_TryLock_CreatesMissingDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/deeper"
	lock := NewRunLock(dir)

	acquired, err := lock.TryLock()

	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, lock.Unlock())
}

func TestRunLock_Unlock_SafeWhenNotHeld(t *testing.T) {
	lock := NewRunLock(t.TempDir())

	// Unlocking without holding the lock is a no-op
	assert.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}
