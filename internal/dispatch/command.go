// Package dispatch implements component C5, the compile dispatcher: turn an
// out-of-date source list into successful object files, or fail, running the
// three-phase PCH/batch/fallback state machine spec.md §4.5 specifies.
package dispatch

import (
	"fmt"
	"strconv"

	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/toolchain"
)

// CRT selects the C runtime linkage, spec.md §3's CompileTask.crt.
type CRT int

const (
	CRTStatic CRT = iota
	CRTDynamic
)

// Task is the subset of CompileTask the dispatcher needs to build a command
// prefix; internal/taskconfig owns the full parsed shape.
type Task struct {
	BuildKind         string // "debug" or "release"
	ObjDir            string
	Includes          []string
	Defines           []string
	CRT               CRT
	WarnLevel         int
	WarningAsError    bool
	DisabledWarnings  []int
	ExtraArgs         string
	PrecompiledHeader string
	PrecompiledSource string
}

// CommandPrefix is the shared argument list every compile invocation in this
// task starts from, per spec.md §4.5's "command construction" paragraph.
func CommandPrefix(tc toolchain.Toolchain, task Task) []string {
	var args []string

	for _, inc := range task.Includes {
		args = append(args, includeFlag(tc, inc))
	}
	for _, def := range task.Defines {
		args = append(args, defineFlag(tc, def))
	}
	args = append(args, warnFlags(tc, task)...)
	args = append(args, crtFlags(tc, task.CRT, task.BuildKind)...)
	args = append(args, optimizationFlags(tc, task.BuildKind)...)

	if task.ExtraArgs != "" {
		args = append(args, task.ExtraArgs)
	}

	if envCompiler, ok := common.EnvString("FB_COMPILER"); ok {
		args = append(args, envCompiler)
	}
	if task.BuildKind == "debug" {
		if v, ok := common.EnvString("FB_COMPILER_DEBUG"); ok {
			args = append(args, v)
		}
	} else if task.BuildKind == "release" {
		if v, ok := common.EnvString("FB_COMPILER_RELEASE"); ok {
			args = append(args, v)
		}
	}

	return args
}

func includeFlag(tc toolchain.Toolchain, dir string) string {
	if tc.Name() == "msvc" {
		return "/I" + dir
	}
	return "-I" + dir
}

func defineFlag(tc toolchain.Toolchain, def string) string {
	if tc.Name() == "msvc" {
		return "/D" + def
	}
	return "-D" + def
}

// warningAsError resolves task.WarningAsError with FB_WARNINGS_AS_ERROR able
// to force it on, the same env-override idiom as FB_COMPILER* above.
func warningAsError(task Task) bool {
	if task.WarningAsError {
		return true
	}
	forced, ok := common.EnvBool("FB_WARNINGS_AS_ERROR")
	return ok && forced
}

func warnFlags(tc toolchain.Toolchain, task Task) []string {
	var flags []string
	werror := warningAsError(task)
	if tc.Name() == "msvc" {
		flags = append(flags, fmt.Sprintf("/W%d", clampWarnLevel(task.WarnLevel)))
		if werror {
			flags = append(flags, "/WX")
		}
		for _, w := range task.DisabledWarnings {
			flags = append(flags, "/wd"+strconv.Itoa(w))
		}
		return flags
	}
	flags = append(flags, "-Wall")
	if werror {
		flags = append(flags, "-Werror")
	}
	for _, w := range task.DisabledWarnings {
		flags = append(flags, "-Wno-"+strconv.Itoa(w))
	}
	return flags
}

func clampWarnLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 4 {
		return 4
	}
	return level
}

func crtFlags(tc toolchain.Toolchain, crt CRT, buildKind string) []string {
	if tc.Name() != "msvc" {
		return nil
	}
	debug := buildKind == "debug"
	switch {
	case crt == CRTStatic && debug:
		return []string{"/MTd"}
	case crt == CRTStatic:
		return []string{"/MT"}
	case crt == CRTDynamic && debug:
		return []string{"/MDd"}
	default:
		return []string{"/MD"}
	}
}

func optimizationFlags(tc toolchain.Toolchain, buildKind string) []string {
	debug := buildKind == "debug"
	if tc.Name() == "msvc" {
		if debug {
			return []string{"/Od", "/Zi"}
		}
		return []string{"/O2"}
	}
	if debug {
		return []string{"-O0", "-g"}
	}
	return []string{"-O2"}
}
