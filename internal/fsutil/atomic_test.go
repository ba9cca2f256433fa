package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesDirectoryAndFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "out.txt")

	require.NoError(t, WriteFile(dest, []byte("hello")))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assertNoTemps(t, filepath.Dir(dest))
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	require.NoError(t, WriteFile(dest, []byte("new")))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestAbort_LeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	f, err := Create(dest)
	require.NoError(t, err)
	_, err = f.WriteString("partial")
	require.NoError(t, err)
	f.Abort()

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	assertNoTemps(t, dir)
}

func TestCommit_Twice(t *testing.T) {
	f, err := Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())
	assert.Error(t, f.Commit())
	f.Abort()
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
