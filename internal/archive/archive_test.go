package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuildtools/fbuild/internal/toolchain"
)

type fakeToolchain struct{ name string }

func (f fakeToolchain) Name() string                    { return f.name }
func (f fakeToolchain) Platform() toolchain.Platform     { return toolchain.X64 }
func (f fakeToolchain) EnvPrelude() string               { return "" }
func (f fakeToolchain) CompilerExe() string              { return "cc" }
func (f fakeToolchain) ArchiverExe() string {
	if f.name == "msvc" {
		return "lib.exe"
	}
	return "ar"
}

func TestArchiverArgs_MSVC(t *testing.T) {
	args := archiverArgs(fakeToolchain{name: "msvc"}, []string{"a.obj", "b.obj"}, "out.lib")
	assert.Equal(t, []string{"/NOLOGO", "/OUT:out.lib", "a.obj", "b.obj"}, args)
}

func TestArchiverArgs_Emscripten(t *testing.T) {
	args := archiverArgs(fakeToolchain{name: "emscripten"}, []string{"a.o"}, "out.a")
	assert.Equal(t, []string{"rcs", "out.a", "a.o"}, args)
}

func TestArchive_RejectsEmptyObjList(t *testing.T) {
	dir := t.TempDir()
	_, err := Archive(fakeToolchain{name: "emscripten"}, nil, filepath.Join(dir, "out.a"))
	require.Error(t, err)
}
