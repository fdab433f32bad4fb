package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceFileExt(t *testing.T) {
	assert.Equal(t, "a.o", ReplaceFileExt("a.cpp", ".o"))
	assert.Equal(t, "dir/b.obj", ReplaceFileExt("dir/b.c", ".obj"))
}

func TestFileExistsAsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.True(t, FileExistsAsRegularFile(file))
	assert.False(t, FileExistsAsRegularFile(dir))
	assert.False(t, FileExistsAsRegularFile(filepath.Join(dir, "missing")))
}

func TestCanonicalPath_ResolvesAbsolute(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	canon, err := CanonicalPath(file)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(canon))
}

func TestOpenTempFile_SiblingOfTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "cache.txt")

	f, err := OpenTempFile(target)
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	assert.Equal(t, dir, filepath.Dir(f.Name()))
}

func TestMkdirForFile_CreatesParent(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c.o")

	require.NoError(t, MkdirForFile(nested))
	info, err := os.Stat(filepath.Dir(nested))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
