package tscache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuildtools/fbuild/internal/common"
)

func TestLastWriteTime_MissingFileReturnsZero(t *testing.T) {
	dir := t.TempDir()
	c := Load(filepath.Join(dir, "cache.txt"), nil)
	assert.Equal(t, uint64(0), c.LastWriteTime(filepath.Join(dir, "nope.cpp")))
}

func TestLastWriteTime_ConstantAcrossTouchWithoutContentChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(file, []byte("int main(){}"), 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(file, past, past))

	c := Load(filepath.Join(dir, "cache.txt"), nil)
	first := c.LastWriteTime(file)
	require.NoError(t, c.Save())

	// touch (mtime advances) without changing content
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(file, future, future))

	c2 := Load(filepath.Join(dir, "cache.txt"), nil)
	second := c2.LastWriteTime(file)

	assert.Equal(t, first, second)
}

func TestLastWriteTime_ChangesWhenContentChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(file, []byte("int main(){}"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(file, past, past))

	persistFile := filepath.Join(dir, "cache.txt")
	c := Load(persistFile, nil)
	first := c.LastWriteTime(file)
	require.NoError(t, c.Save())

	require.NoError(t, os.WriteFile(file, []byte("int main(){ return 1; }"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(file, future, future))

	c2 := Load(persistFile, nil)
	second := c2.LastWriteTime(file)
	assert.Greater(t, second, first)
}

func TestSave_TolerantOfCorruptExistingFile(t *testing.T) {
	dir := t.TempDir()
	persistFile := filepath.Join(dir, "cache.txt")
	require.NoError(t, os.WriteFile(persistFile, []byte("not a valid cache line\n"), 0644))

	file := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	c := Load(persistFile, nil)
	c.LastWriteTime(file)
	assert.NoError(t, c.Save())
}

func TestParseAndFormatCacheLine_RoundTrip(t *testing.T) {
	hash := common.HashBytes([]byte("round trip"))
	line := formatCacheLine("/a/b.cpp", 12345, hash)
	path, ts, parsed, ok := parseCacheLine(line)
	require.True(t, ok)
	assert.Equal(t, "/a/b.cpp", path)
	assert.Equal(t, uint64(12345), ts)
	assert.True(t, parsed.Equal(hash))
}
