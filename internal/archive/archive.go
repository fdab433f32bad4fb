// Package archive implements component C7: invoking the vendor archiver over
// a final object-file list to produce a static library (spec.md §4.7).
// spec.md leaves this step almost entirely unspecified ("out of scope for
// deep specification"); the subprocess-capture idiom it's built on is still
// the teacher's, grounded on CxxLauncher's launch/capture pattern
// (internal/server/cxx-launcher.go) and LocalCxxLaunch.RunCxxLocally
// (internal/client/compile-locally.go) — run, capture exit code and
// stdout/stderr separately, fall back to err.Error() when stderr is empty.
package archive

import (
	"fmt"

	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/toolchain"
)

// Result mirrors the subprocess-capture shape used throughout the dispatcher.
type Result = common.RunResult

// Archive invokes the active toolchain's archiver (lib.exe for MSVC, emar for
// Emscripten) over objFiles, producing outLib. Like the compile dispatcher,
// it runs the archiver behind the toolchain's EnvPrelude so MSVC's lib.exe
// sees the vcvarsall.bat-primed environment it needs.
func Archive(tc toolchain.Toolchain, objFiles []string, outLib string) (Result, error) {
	if len(objFiles) == 0 {
		return Result{}, fmt.Errorf("archive: no object files given for %s", outLib)
	}
	if err := common.MkdirForFile(outLib); err != nil {
		return Result{}, err
	}

	args := archiverArgs(tc, objFiles, outLib)
	result := common.Run(tc.EnvPrelude(), tc.ArchiverExe(), args)
	if result.ExitCode != 0 {
		return result, fmt.Errorf("archive: %s exited %d: %s", tc.ArchiverExe(), result.ExitCode, string(result.Stderr))
	}
	return result, nil
}

func archiverArgs(tc toolchain.Toolchain, objFiles []string, outLib string) []string {
	switch tc.Name() {
	case "msvc":
		args := []string{"/NOLOGO", "/OUT:" + outLib}
		return append(args, objFiles...)
	default: // emar, ar-compatible
		args := []string{"rcs", outLib}
		return append(args, objFiles...)
	}
}
