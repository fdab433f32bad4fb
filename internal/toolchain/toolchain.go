// Package toolchain implements component C6, the toolchain adapter: it
// discovers which vendor compiler toolchain is active and renders a shell
// prelude that primes the environment for it, without running any
// compilation itself (spec.md §4.6).
//
// The "explicit config, then shell-environment hint, then numbered-version
// scan" discovery order generalizes the teacher's environment-variable
// lookup idiom (VKCOM/nocc internal/common/cmd-env-flags.go, CmdEnvString
// and friends) from single command-line flags to a whole toolchain
// resolution pipeline.
package toolchain

import (
	"fmt"

	"github.com/fbuildtools/fbuild/internal/common"
)

// Platform is the target architecture word width, spec.md §4.6's platform().
type Platform string

const (
	X86 Platform = "x86"
	X64 Platform = "x64"
)

// Toolchain is the C6 contract: toolchain(), platform(), envPrelude().
type Toolchain interface {
	Name() string
	Platform() Platform
	EnvPrelude() string
	CompilerExe() string
	ArchiverExe() string
}

// Config is the explicit-configuration input, highest-priority in the
// discovery order (spec.md §4.6 step 1).
type Config struct {
	Name     string // "msvc" or "emscripten"; empty means "discover"
	Version  string // explicit install root: the Visual Studio directory for msvc, the emsdk directory for emscripten
	Platform Platform
}

// Resolve discovers the active toolchain per spec.md §4.6's three-step order.
// Failure to resolve is a ConfigError: fatal, the caller must abort the build.
func Resolve(cfg Config) (Toolchain, error) {
	platform := cfg.Platform
	if platform == "" {
		platform = X64
	}

	name := cfg.Name
	if name == "" {
		if _, ok := common.EnvString("EMSDK"); ok {
			name = "emscripten"
		} else if _, ok := common.EnvString("VCToolsInstallDir"); ok {
			name = "msvc"
		}
	}

	switch name {
	case "msvc":
		return resolveMSVC(cfg.Version, platform)
	case "emscripten":
		return resolveEmscripten(cfg.Version, platform)
	case "":
		return nil, fmt.Errorf("toolchain: could not discover an active toolchain (no explicit config, no VCToolsInstallDir/EMSDK hint)")
	default:
		return nil, fmt.Errorf("toolchain: unknown toolchain %q", name)
	}
}
