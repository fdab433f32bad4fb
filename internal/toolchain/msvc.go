package toolchain

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fbuildtools/fbuild/internal/common"
)

// msvcToolchain renders an envPrelude as a `call "vcvarsall.bat" <platform>`
// line, chained with `&&` ahead of cl.exe/lib.exe invocations — the
// platform command-chaining operator spec.md §4.6 alludes to.
type msvcToolchain struct {
	version      string
	platform     Platform
	toolsDir     string
	vcvarsallBat string
}

// numberedVersionEnvVars are the well-known, numbered-version-per-install
// environment variables published by Visual Studio installers, newest first.
// Discovery step 3 (spec.md §4.6) scans these when no explicit version and
// no VCToolsInstallDir shell hint were found.
var numberedVersionEnvVars = []string{
	"VS2022INSTALLDIR",
	"VS170COMNTOOLS",
	"VS2019INSTALLDIR",
	"VS160COMNTOOLS",
	"VS2017INSTALLDIR",
	"VS150COMNTOOLS",
}

func resolveMSVC(explicitVersion string, platform Platform) (Toolchain, error) {
	if explicitVersion != "" {
		return &msvcToolchain{
			version:      explicitVersion,
			platform:     platform,
			vcvarsallBat: filepath.Join(explicitVersion, "VC", "Auxiliary", "Build", "vcvarsall.bat"),
		}, nil
	}

	if dir, ok := common.EnvString("VCToolsInstallDir"); ok {
		version, _ := common.EnvString("VisualStudioVersion")
		return &msvcToolchain{
			version:      version,
			platform:     platform,
			toolsDir:     dir,
			vcvarsallBat: locateVcvarsallFromToolsDir(dir),
		}, nil
	}

	var found []string
	for _, envVar := range numberedVersionEnvVars {
		if dir, ok := common.EnvString(envVar); ok {
			found = append(found, dir)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("toolchain: msvc requested but no installed version found (checked VCToolsInstallDir and %v)", numberedVersionEnvVars)
	}
	sort.Strings(found) // lexical sort over version-named dirs approximates "newest wins" closely enough for discovery
	newest := found[len(found)-1]
	return &msvcToolchain{
		platform:     platform,
		toolsDir:     newest,
		vcvarsallBat: filepath.Join(newest, "VC", "Auxiliary", "Build", "vcvarsall.bat"),
	}, nil
}

func locateVcvarsallFromToolsDir(vcToolsInstallDir string) string {
	// VCToolsInstallDir points at .../VC/Tools/MSVC/<ver>/; vcvarsall.bat lives
	// three levels up, under VC/Auxiliary/Build.
	vcRoot := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Clean(vcToolsInstallDir))))
	return filepath.Join(vcRoot, "Auxiliary", "Build", "vcvarsall.bat")
}

func (m *msvcToolchain) Name() string     { return "msvc" }
func (m *msvcToolchain) Platform() Platform { return m.platform }

func (m *msvcToolchain) EnvPrelude() string {
	arg := "x64"
	if m.platform == X86 {
		arg = "x86"
	}
	return fmt.Sprintf("call %q %s", m.vcvarsallBat, arg)
}

func (m *msvcToolchain) CompilerExe() string { return "cl.exe" }
func (m *msvcToolchain) ArchiverExe() string { return "lib.exe" }
