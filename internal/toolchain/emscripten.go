package toolchain

import (
	"fmt"
	"path/filepath"

	"github.com/fbuildtools/fbuild/internal/common"
)

// emscriptenToolchain renders an envPrelude that sources emsdk_env before
// invoking em++/emar, the cross-toolchain half of spec.md §1's scope.
type emscriptenToolchain struct {
	platform Platform
	sdkRoot  string
}

func resolveEmscripten(explicitVersion string, platform Platform) (Toolchain, error) {
	if explicitVersion != "" {
		return &emscriptenToolchain{platform: platform, sdkRoot: explicitVersion}, nil
	}

	if sdk, ok := common.EnvString("EMSDK"); ok {
		return &emscriptenToolchain{platform: platform, sdkRoot: sdk}, nil
	}
	if root, ok := common.EnvString("EMSCRIPTEN_ROOT"); ok {
		return &emscriptenToolchain{platform: platform, sdkRoot: filepath.Dir(root)}, nil
	}

	return nil, fmt.Errorf("toolchain: emscripten requested but neither EMSDK nor EMSCRIPTEN_ROOT is set")
}

func (e *emscriptenToolchain) Name() string      { return "emscripten" }
func (e *emscriptenToolchain) Platform() Platform { return e.platform }

// Emscripten's own toolchain is architecture-neutral (it always targets
// wasm32); platform is reported by Platform() but changes neither the
// prelude nor any compiler flag.
func (e *emscriptenToolchain) EnvPrelude() string {
	return fmt.Sprintf(". %q", filepath.Join(e.sdkRoot, "emsdk_env.sh"))
}

func (e *emscriptenToolchain) CompilerExe() string { return "em++" }
func (e *emscriptenToolchain) ArchiverExe() string { return "emar" }
