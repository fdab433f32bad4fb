package taskconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuildtools/fbuild/internal/dispatch"
)

const sampleScript = `
[[task]]
build = "Debug"
files = ["a.cpp", "b.cpp"]
includes = ["include"]
crt = "static"
threads = 4
`

func TestLoad_ParsesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0644))

	tasks, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "debug", task.Build)
	assert.Equal(t, "debug", task.ObjDir) // defaults to build kind
	assert.Equal(t, 4, task.Threads)
	assert.Equal(t, dispatch.CRTStatic, task.CRTKind())
}

func TestLoad_RejectsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[task]]\nbuild=\"debug\"\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownBuildKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	script := `
[[task]]
build = "profiling"
files = ["a.cpp"]
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_PreservesExplicitZeroWarnLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	script := `
[[task]]
build = "debug"
files = ["a.cpp"]
warnLevel = 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	tasks, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, tasks[0].WarnLevel)
}

func TestLoad_RejectsOutOfRangeWarnLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	script := `
[[task]]
build = "debug"
files = ["a.cpp"]
warnLevel = 7
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestOverrides_ApplyTakesPrecedence(t *testing.T) {
	task := CompileTask{Build: "debug", Threads: 2}
	threads := 16
	buildKind := "release"
	Overrides{Threads: &threads, BuildKind: &buildKind}.Apply(&task)

	assert.Equal(t, 16, task.Threads)
	assert.Equal(t, "release", task.Build)
}
