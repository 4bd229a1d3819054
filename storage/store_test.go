package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintra/credvault/logger"
)

func TestNewBackend_UnknownType(t *testing.T) {
	_, err := NewBackend("s3", nil, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend("inmem", nil, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "inmem", b.Name())

	// Empty backend has no snapshot
	data, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, b.Store(ctx, []byte(`{"u1":[]}`)))

	data, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"u1":[]}`), data)

	// Returned slice is a copy
	data[0] = 'X'
	again, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"u1":[]}`), again)

	require.NoError(t, b.Wipe(ctx))
	data, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	b, err := NewBackend("file", map[string]string{"path": path}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "file", b.Name())

	// Missing snapshot file is not an error
	data, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, b.Store(ctx, []byte("first")))
	require.NoError(t, b.Store(ctx, []byte("second")))

	data, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, b.Wipe(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Wiping twice is fine
	require.NoError(t, b.Wipe(ctx))
}

func TestFileBackend_RequiresPath(t *testing.T) {
	_, err := NewBackend("file", map[string]string{}, logger.NewNopLogger())
	require.Error(t, err)
}

func TestFileBackend_CreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "deeper", "tokens.json")

	b, err := NewBackend("file", map[string]string{"path": path}, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, b.Store(ctx, []byte("data")))
	data, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}
