package common

import (
	"bytes"
	"os/exec"
	"runtime"
	"time"
)

// RunResult is the subprocess-capture shape shared by every invocation kind
// that runs a toolchain binary, grounded on the teacher's
// CxxLauncher.launchServerCxxForCpp (internal/server/cxx-launcher.go) and
// LocalCxxLaunch.RunCxxLocally (internal/client/compile-locally.go): run,
// capture stdout/stderr separately, fall back to err.Error() when stderr is
// empty.
type RunResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Run invokes name with args, optionally chaining an envPrelude shell
// fragment ahead of it via the platform's command-chaining operator. Both
// the compile dispatcher (C5, toolchain compilers) and the archive step (C7,
// lib.exe/emar) share this: either one may need a toolchain's EnvPrelude
// primed first.
func Run(envPrelude string, name string, args []string) RunResult {
	started := time.Now()

	var cmd *exec.Cmd
	if envPrelude != "" {
		// MSVC's vcvarsall.bat prelude needs cmd.exe's "&&" chaining; Emscripten's
		// emsdk_env.sh prelude needs a POSIX shell's. Pick by host OS, since the
		// toolchain that needs a Windows-only prelude only ever runs there.
		full := envPrelude + " && " + quoteCmdLine(append([]string{name}, args...))
		if runtime.GOOS == "windows" {
			cmd = exec.Command("cmd", "/C", full)
		} else {
			cmd = exec.Command("sh", "-c", full)
		}
	} else {
		cmd = exec.Command(name, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	} else if err != nil {
		exitCode = 1
	}

	stderrBytes := stderr.Bytes()
	if len(stderrBytes) == 0 && err != nil {
		stderrBytes = []byte(err.Error())
	}

	return RunResult{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderrBytes,
		Duration: time.Since(started),
	}
}

func quoteCmdLine(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += `"` + p + `"`
	}
	return out
}
