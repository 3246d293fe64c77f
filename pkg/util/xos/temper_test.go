package xos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemper(t *testing.T) {
	root := t.TempDir()
	temper := NewTemper(root, "_temp*")

	t.Run("path is stable", func(t *testing.T) {
		p1, err := temper.Path()
		require.NoError(t, err)
		p2, err := temper.Path()
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
		assert.Equal(t, root, filepath.Dir(p1))
	})

	t.Run("create temp file", func(t *testing.T) {
		f, err := temper.CreateTemp("blob*")
		require.NoError(t, err)
		defer f.Close()

		dir, err := temper.Path()
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(f.Name()))
	})

	t.Run("cleanup removes everything", func(t *testing.T) {
		dir, err := temper.Path()
		require.NoError(t, err)
		require.NoError(t, temper.Cleanup())
		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestTemperSanitizesPattern(t *testing.T) {
	temper := NewTemper(t.TempDir(), "a/b*")
	assert.NotContains(t, filepath.Base(temper.String()), "/")
}

func TestIsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, IsEmptyDir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o600))
	assert.False(t, IsEmptyDir(dir))

	assert.False(t, IsEmptyDir(filepath.Join(dir, "missing")))
}
