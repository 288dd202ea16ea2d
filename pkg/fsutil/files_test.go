package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_CreatesDestinationDir(t *testing.T) {
	tempDir := t.TempDir()

	src := filepath.Join(tempDir, "source.txt")
	dst := filepath.Join(tempDir, "full", "nested", "destination.txt")
	require.NoError(t, os.WriteFile(src, []byte("Hello, World!"), FileModeDefault))

	require.NoError(t, Move(src, dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(content))
	assert.False(t, FileExists(src))
}

func TestMove_EmptyPaths(t *testing.T) {
	assert.Error(t, Move("", "x"))
	assert.Error(t, Move("x", ""))
}

func TestMove_MissingSource(t *testing.T) {
	tempDir := t.TempDir()
	err := Move(filepath.Join(tempDir, "missing"), filepath.Join(tempDir, "dst"))
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "thumbs", "small", "abc.jpg")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), FileModeDefault))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileModeDefault), info.Mode().Perm())
}

func TestFileMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), FileModeDefault))

	sum, err := FileMD5(path)
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", sum)

	_, err = FileMD5(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDirUsage(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, WriteFileAtomic(filepath.Join(tempDir, "full", "a"), []byte("12345"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(filepath.Join(tempDir, "full", "b"), []byte("123"), FileModeDefault))

	size, files, err := DirUsage(filepath.Join(tempDir, "full"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.Equal(t, 2, files)

	size, files, err = DirUsage(filepath.Join(tempDir, "thumbs"))
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Zero(t, files)
}

func TestGetDataDir_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	dir, err := GetDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", AppName), dir)
	assert.Equal(t, filepath.Join("/tmp/xdg", AppName, "media"), GetDefaultStoreDir())
}
