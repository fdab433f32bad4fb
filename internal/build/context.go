// Package build implements the top-level orchestration that wires
// components C1-C7 together for one CompileTask, per spec.md §4.5's state
// machine and §9's instruction that process-wide mutable state (include
// paths, forced PCH, timestamp cache) be encapsulated behind a context
// object passed to workers, rather than kept as globals — generalizing the
// teacher's Daemon.includesCache field (a single global field on the
// daemon) into an explicit, per-run Context value.
package build

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fbuildtools/fbuild/internal/archive"
	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/depresolve"
	"github.com/fbuildtools/fbuild/internal/dispatch"
	"github.com/fbuildtools/fbuild/internal/outofdate"
	"github.com/fbuildtools/fbuild/internal/scan"
	"github.com/fbuildtools/fbuild/internal/taskconfig"
	"github.com/fbuildtools/fbuild/internal/toolchain"
	"github.com/fbuildtools/fbuild/internal/tscache"
)

// Context bundles the run-wide mutable state a build run needs: the shared
// timestamp cache and the include scanner's memoization cache, plus the
// logger. One Context is built once per run instead of living as
// package-level globals; RunTask hands its caches to the per-task resolver
// and evaluator, which carry the task's include search paths and forced
// precompiled header themselves.
//
// RunID identifies this run in log lines, replacing the
// teacher's daemon-scoped uint32 session counter (which only made sense for
// one long-lived daemon process) with an identifier that's meaningful for a
// single, short-lived `fbuild build` invocation.
type Context struct {
	RunID     uuid.UUID
	TsCache   *tscache.Cache
	ScanCache *scan.Cache
	Logger    *common.Logger
}

// NewContext loads the persistent timestamp cache from its well-known
// location and creates a fresh, empty scan memo for the run.
func NewContext(logger *common.Logger) *Context {
	return &Context{
		RunID:     uuid.New(),
		TsCache:   tscache.Load(tscache.DefaultPersistPath(), logger),
		ScanCache: scan.NewCache(),
		Logger:    logger,
	}
}

// Result is the outcome of running one CompileTask end to end.
type Result struct {
	ExitCode int
	Outcome  dispatch.Outcome
}

// RunTask executes one CompileTask: C4 evaluates staleness (using C1+C3),
// C5 dispatches compilation via C6, and C7 archives the result if
// ArchiveOutput is configured. buildScriptFile is the driving script's own
// path, consulted by C4's staleness rule.
func (c *Context) RunTask(ctx context.Context, task taskconfig.CompileTask, buildScriptFile string, tcCfg toolchain.Config, overrideThreads int) (Result, error) {
	defer c.TsCache.FlushOnShutdown()

	if c.Logger != nil {
		c.Logger.Info(0, "build: starting run", c.RunID, "task", task.Build)
	}

	tc, err := toolchain.Resolve(tcCfg)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("build: toolchain resolution failed: %w", err)
	}

	resolver := depresolve.New(c.ScanCache, c.TsCache, task.Includes, c.Logger)
	evaluator := outofdate.New(c.TsCache, resolver)

	threads := task.Threads
	if overrideThreads > 0 {
		threads = overrideThreads
	}

	decisions, err := evaluator.Evaluate(ctx, task.Sources, task.ObjDir, objExtFor(tc), buildScriptFile, task.PchHeader, task.DependencyCheck, threads)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("build: out-of-date evaluation failed: %w", err)
	}

	dispatchTask := dispatch.Task{
		BuildKind:         task.Build,
		ObjDir:            task.ObjDir,
		Includes:          task.Includes,
		Defines:           task.Defines,
		CRT:               task.CRTKind(),
		WarnLevel:         task.WarnLevel,
		WarningAsError:    task.WarningAsError,
		DisabledWarnings:  task.DisabledWarnings,
		ExtraArgs:         task.ExtraArgs,
		PrecompiledHeader: task.PchHeader,
		PrecompiledSource: task.PchSource,
	}
	dispatcher := dispatch.New(tc, dispatchTask, c.Logger)
	outcome := dispatcher.Compile(decisions, task.MpSkip, threads)

	if outcome.State == dispatch.FatalError {
		if c.Logger != nil {
			c.Logger.Error("build: compile failed", outcome.Advisory, outcome.FailedSources)
		}
		return Result{ExitCode: 1, Outcome: outcome}, fmt.Errorf("build: compile failed for %v", outcome.FailedSources)
	}
	if outcome.State == dispatch.DoneWithWarnings && c.Logger != nil {
		c.Logger.Info(0, "build: "+outcome.Advisory)
	}

	if task.ArchiveOutput != "" {
		objFiles := objectFilesFor(decisions)
		if _, err := archive.Archive(tc, objFiles, task.ArchiveOutput); err != nil {
			return Result{ExitCode: 1, Outcome: outcome}, fmt.Errorf("build: archive failed: %w", err)
		}
	}

	return Result{ExitCode: 0, Outcome: outcome}, nil
}

func objExtFor(tc toolchain.Toolchain) string {
	if tc.Name() == "msvc" {
		return ".obj"
	}
	return ".o"
}

func objectFilesFor(decisions []outofdate.Decision) []string {
	paths := make([]string, len(decisions))
	for i, d := range decisions {
		paths[i] = d.ObjectPath
	}
	return paths
}
