package depresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuildtools/fbuild/internal/scan"
	"github.com/fbuildtools/fbuild/internal/tscache"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestResolver_TransitiveClosure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cpp"), `#include "b.h"`)
	writeFile(t, filepath.Join(dir, "b.h"), `#include "c.h"`)
	writeFile(t, filepath.Join(dir, "c.h"), `int c();`)

	tsCache := tscache.Load(filepath.Join(dir, "ts-cache.txt"), nil)
	r := New(scan.NewCache(), tsCache, nil, nil)

	deps, maxTs, err := r.Resolve(filepath.Join(dir, "a.cpp"), "")
	require.NoError(t, err)
	assert.Len(t, deps, 3)
	assert.Greater(t, maxTs, uint64(0))

	for _, name := range []string{"a.cpp", "b.h", "c.h"} {
		canon, _ := filepath.Abs(filepath.Join(dir, name))
		resolved, _ := filepath.EvalSymlinks(canon)
		_, ok := deps[resolved]
		assert.True(t, ok, "expected %s in closure", name)
	}
}

func TestResolver_AngleIncludeSearchPath(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "include")
	require.NoError(t, os.Mkdir(incDir, 0755))
	writeFile(t, filepath.Join(dir, "a.cpp"), `#include <lib.h>`)
	writeFile(t, filepath.Join(incDir, "lib.h"), `void f();`)

	tsCache := tscache.Load(filepath.Join(dir, "ts-cache.txt"), nil)
	r := New(scan.NewCache(), tsCache, []string{incDir}, nil)

	deps, _, err := r.Resolve(filepath.Join(dir, "a.cpp"), "")
	require.NoError(t, err)
	assert.Len(t, deps, 2)
}

func TestResolver_MissingIncludeIsSilentlyDropped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cpp"), `#include "missing.h"`)

	tsCache := tscache.Load(filepath.Join(dir, "ts-cache.txt"), nil)
	r := New(scan.NewCache(), tsCache, nil, nil)

	deps, _, err := r.Resolve(filepath.Join(dir, "a.cpp"), "")
	require.NoError(t, err)
	assert.Len(t, deps, 1) // only a.cpp itself
}

func TestResolver_SidecarCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cpp"), `#include "b.h"`)
	writeFile(t, filepath.Join(dir, "b.h"), `int b();`)

	tsCache := tscache.Load(filepath.Join(dir, "ts-cache.txt"), nil)
	r := New(scan.NewCache(), tsCache, nil, nil)

	tu := filepath.Join(dir, "a.cpp")
	deps1, maxTs1, err := r.Resolve(tu, "")
	require.NoError(t, err)

	canonTu, err := filepath.Abs(tu)
	require.NoError(t, err)
	canonTu, _ = filepath.EvalSymlinks(canonTu)
	assert.FileExists(t, sidecarPath(canonTu))

	// fresh resolver/scan cache: must adopt the sidecar without re-scanning.
	r2 := New(scan.NewCache(), tsCache, nil, nil)
	deps2, maxTs2, err := r2.Resolve(tu, "")
	require.NoError(t, err)
	assert.Equal(t, deps1, deps2)
	assert.Equal(t, maxTs1, maxTs2)
}

func TestResolver_ResolveOfMissingTuPrunesItsOwnSidecar(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.cpp")
	writeFile(t, gone+".cppdeps", "stale")

	tsCache := tscache.Load(filepath.Join(dir, "ts-cache.txt"), nil)
	r := New(scan.NewCache(), tsCache, nil, nil)

	_, _, err := r.Resolve(gone, "")
	require.Error(t, err)

	_, statErr := os.Stat(gone + ".cppdeps")
	assert.True(t, os.IsNotExist(statErr))
}

func TestPruneOrphanSidecars(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "gone.cpp.cppdeps")
	writeFile(t, orphan, "stale")
	writeFile(t, filepath.Join(dir, "kept.cpp"), "int main(){}")
	writeFile(t, filepath.Join(dir, "kept.cpp.cppdeps"), "stale-but-kept")

	require.NoError(t, PruneOrphanSidecars(dir))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, filepath.Join(dir, "kept.cpp.cppdeps"))
}
