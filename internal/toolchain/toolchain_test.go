package toolchain

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExplicitNameWins(t *testing.T) {
	tc, err := Resolve(Config{Name: "emscripten", Version: "/opt/emsdk", Platform: X64})
	require.NoError(t, err)
	assert.Equal(t, "emscripten", tc.Name())
	assert.Contains(t, tc.EnvPrelude(), "emsdk_env.sh")
}

func TestResolve_NoHintsFails(t *testing.T) {
	os.Unsetenv("EMSDK")
	os.Unsetenv("VCToolsInstallDir")
	_, err := Resolve(Config{})
	assert.Error(t, err)
}

func TestResolve_MSVC_NoInstallFound(t *testing.T) {
	os.Unsetenv("VCToolsInstallDir")
	for _, v := range numberedVersionEnvVars {
		os.Unsetenv(v)
	}
	_, err := resolveMSVC("", X64)
	assert.Error(t, err)
}

func TestMSVC_EnvPreludeUsesPlatformArg(t *testing.T) {
	tc, err := resolveMSVC("/opt/vs2022", X86)
	require.NoError(t, err)
	assert.Contains(t, tc.EnvPrelude(), "x86")
}
