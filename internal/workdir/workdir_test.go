package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcquireCreatesIsolatedDirs(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "work"), zap.NewNop())
	require.NoError(t, err)

	a, err := m.Acquire()
	require.NoError(t, err)
	b, err := m.Acquire()
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())

	info, err := os.Stat(a.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestReleaseRemovesTree(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "work"), zap.NewNop())
	require.NoError(t, err)

	d, err := m.Acquire()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(d.Join("nested.txt"), []byte("x"), 0o644))

	d.Release()

	_, err = os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseIsIdempotent(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "work"), zap.NewNop())
	require.NoError(t, err)

	d, err := m.Acquire()
	require.NoError(t, err)

	d.Release()
	d.Release() // must not panic or error
}

func TestJoin(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "work"), zap.NewNop())
	require.NoError(t, err)

	d, err := m.Acquire()
	require.NoError(t, err)
	defer d.Release()

	assert.Equal(t, filepath.Join(d.Path(), "a", "b"), d.Join("a", "b"))
}
