package dispatch

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/depresolve"
	"github.com/fbuildtools/fbuild/internal/outofdate"
	"github.com/fbuildtools/fbuild/internal/toolchain"
)

// State names the terminal states of the C5 state machine (spec.md §4.5's
// diagram): Done, Done+Warn (DoneWithWarnings) and FatalError. The
// intermediate phases are steps of Compile, not State values.
type State int

const (
	Done State = iota
	DoneWithWarnings
	FatalError
)

// Outcome is the result of a whole Compile operation.
type Outcome struct {
	State             State
	BatchPartialFail  bool
	CompiledCount     int
	FailedSources     []string
	Advisory          string
}

// Dispatcher is component C5.
type Dispatcher struct {
	toolchain toolchain.Toolchain
	task      Task
	logger    *common.Logger
}

func New(tc toolchain.Toolchain, task Task, logger *common.Logger) *Dispatcher {
	return &Dispatcher{toolchain: tc, task: task, logger: logger}
}

// Compile runs the whole three-phase state machine over decisions (the
// out-of-date list C4 produced), plus mpSkipFiles (sources that must never
// enter the batch phase) and configuredThreads.
func (d *Dispatcher) Compile(decisions []outofdate.Decision, mpSkipFiles []string, configuredThreads int) Outcome {
	var outOfDate []outofdate.Decision
	for _, dec := range decisions {
		if dec.NeedsBuild {
			outOfDate = append(outOfDate, dec)
		}
	}
	if len(outOfDate) == 0 {
		return Outcome{State: Done}
	}

	if err := common.MkdirForFile(filepath.Join(d.task.ObjDir, ".keep")); err != nil {
		return Outcome{State: FatalError, Advisory: fmt.Sprintf("could not create objDir: %v", err)}
	}

	deleteStaleObjects(outOfDate)

	prefix := CommandPrefix(d.toolchain, d.task)

	// Phase 1: precompiled-header compilation strictly precedes all others.
	outOfDate, pchErr := d.runPchPhase(outOfDate, prefix)
	if pchErr != nil {
		return Outcome{State: FatalError, Advisory: pchErr.Error()}
	}

	skipSet := make(map[string]bool, len(mpSkipFiles))
	for _, s := range mpSkipFiles {
		canon, _ := common.CanonicalPath(s)
		skipSet[canon] = true
	}

	var skip, batch []outofdate.Decision
	for _, dec := range outOfDate {
		canon, _ := common.CanonicalPath(dec.Source)
		if skipSet[canon] {
			skip = append(skip, dec)
		} else {
			batch = append(batch, dec)
		}
	}

	batchPartialFailure := false
	compiled := 0

	if len(batch) > 0 {
		survivors, batchCompiled, err := d.runBatchPhase(batch, prefix, configuredThreads)
		compiled += batchCompiled
		if err != nil {
			batchPartialFailure = true
			skip = append(skip, survivors...)
		}
	}

	if len(skip) == 0 {
		return Outcome{State: Done, CompiledCount: compiled, BatchPartialFail: batchPartialFailure}
	}

	failed, fallbackCompiled := d.runFallbackPool(skip, prefix, configuredThreads)
	compiled += fallbackCompiled

	if len(failed) > 0 {
		return Outcome{State: FatalError, CompiledCount: compiled, BatchPartialFail: batchPartialFailure, FailedSources: failed}
	}
	if batchPartialFailure {
		return Outcome{
			State:            DoneWithWarnings,
			CompiledCount:    compiled,
			BatchPartialFail: true,
			Advisory:         "batch compilation failed for some sources; consider adding them to mpSkipFiles",
		}
	}
	return Outcome{State: Done, CompiledCount: compiled}
}

// deleteStaleObjects implements spec.md §4.5's DeleteStaleObjects step: every
// object file about to be recompiled is removed up front, so a compiler crash
// midway through a batch can never leave a stale object behind that a later
// run's timestamp check would mistake for up to date. This trades away
// compiler-side incremental features that key off an existing object file,
// per the Open Question decision recorded in DESIGN.md.
func deleteStaleObjects(outOfDate []outofdate.Decision) {
	for _, dec := range outOfDate {
		_ = os.Remove(dec.ObjectPath)
	}
}

// runPchPhase implements spec.md §4.5 step 1: if the PCH source is in the
// out-of-date list, recompute its PchHash (C3) over its dependency closure
// and compiler arguments. A match against the hash recorded for the existing
// .pch means the previous build is still reusable as-is, per SPEC_FULL.md
// §4.3's promise that a valid .pch is recognized and not rebuilt; otherwise
// the old .pch is deleted and it is compiled alone.
func (d *Dispatcher) runPchPhase(outOfDate []outofdate.Decision, prefix []string) ([]outofdate.Decision, error) {
	if d.task.PrecompiledSource == "" {
		return outOfDate, nil
	}

	canonPchSrc, _ := common.CanonicalPath(d.task.PrecompiledSource)
	remaining := outOfDate[:0:0]
	var pchDec *outofdate.Decision
	for i, dec := range outOfDate {
		canon, _ := common.CanonicalPath(dec.Source)
		if canon == canonPchSrc {
			pchDec = &outOfDate[i]
			continue
		}
		remaining = append(remaining, dec)
	}
	if pchDec == nil {
		return outOfDate, nil
	}

	pchOutPath := common.ReplaceFileExt(d.task.PrecompiledHeader, ".pch")
	args := append(append([]string{}, prefix...), pchCreateArgs(d.toolchain, d.task.PrecompiledHeader, pchOutPath)...)
	args = append(args, d.task.PrecompiledSource)

	newHash, err := depresolve.PchHash(d.task.PrecompiledHeader, args, pchDec.Deps)
	if err == nil && pchStillValid(pchOutPath, newHash) {
		return remaining, nil
	}

	_ = os.Remove(pchOutPath)

	result := common.Run(d.toolchain.EnvPrelude(), d.toolchain.CompilerExe(), args)
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("pch compilation failed (exit %d): %s", result.ExitCode, string(result.Stderr))
	}
	if err == nil {
		_ = writePchHash(pchOutPath, newHash)
	}
	return remaining, nil
}

func pchHashSidecar(pchOutPath string) string {
	return pchOutPath + ".pchhash"
}

// pchStillValid reports whether the .pch at pchOutPath exists and its
// recorded PchHash matches newHash, meaning no recompilation is required.
func pchStillValid(pchOutPath string, newHash common.SHA256) bool {
	if !common.FileExistsAsRegularFile(pchOutPath) {
		return false
	}
	stored, err := os.ReadFile(pchHashSidecar(pchOutPath))
	if err != nil {
		return false
	}
	var prev common.SHA256
	if prev.FromHexString(strings.TrimSpace(string(stored))) != nil {
		return false
	}
	return prev.Equal(newHash)
}

func writePchHash(pchOutPath string, hash common.SHA256) error {
	return os.WriteFile(pchHashSidecar(pchOutPath), []byte(hash.ToHexString()), 0644)
}

func pchCreateArgs(tc toolchain.Toolchain, pchHeader, pchOutPath string) []string {
	if tc.Name() == "msvc" {
		return []string{"/c", "/Yc" + pchHeader, "/Fp" + pchOutPath}
	}
	return []string{"-x", "c++-header", "-o", pchOutPath}
}

// runBatchPhase implements spec.md §4.5 step 2: a single response-file
// invocation, followed by the mtime-after-start heuristic to tell done
// sources from survivors when the batch process exits nonzero.
func (d *Dispatcher) runBatchPhase(batch []outofdate.Decision, prefix []string, configuredThreads int) (survivors []outofdate.Decision, compiledCount int, err error) {
	rsp, err := writeResponseFile(d.task.ObjDir, batch)
	if err != nil {
		return batch, 0, err
	}
	defer os.Remove(rsp)

	threads := clampBatchThreads(configuredThreads, len(batch))
	args := append(append([]string{}, prefix...), batchFlags(d.toolchain, threads, d.task.ObjDir)...)
	args = append(args, "@"+rsp)

	batchStart := time.Now()
	result := common.Run(d.toolchain.EnvPrelude(), d.toolchain.CompilerExe(), args)

	if result.ExitCode == 0 {
		return nil, len(batch), nil
	}

	for _, dec := range batch {
		stat, statErr := os.Stat(dec.ObjectPath)
		if statErr == nil && stat.ModTime().After(batchStart) {
			compiledCount++
			continue
		}
		survivors = append(survivors, dec)
	}
	return survivors, compiledCount, fmt.Errorf("batch compile exited %d: %s", result.ExitCode, string(result.Stderr))
}

// clampBatchThreads implements spec.md §4.5's
// clamp(configuredThreads, max(hardwareParallelism, 2), |batch|) rule, the
// same shape as internal/outofdate.Workers, including the FB_MAX_THREADS
// hard-ceiling override.
func clampBatchThreads(configuredThreads, batchLen int) int {
	n := configuredThreads
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 2 {
		n = 2
	}
	if max, ok := common.EnvInt("FB_MAX_THREADS"); ok && int(max) < n {
		n = int(max)
	}
	if n > batchLen {
		n = batchLen
	}
	if n < 1 {
		n = 1
	}
	return n
}

func writeResponseFile(objDir string, batch []outofdate.Decision) (string, error) {
	if err := common.MkdirForFile(filepath.Join(objDir, ".keep")); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(objDir, "fbuild-batch-*.rsp")
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i, dec := range batch {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(quoteArg(dec.Source))
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func quoteArg(s string) string {
	return `"` + s + `"`
}

func batchFlags(tc toolchain.Toolchain, threads int, objDir string) []string {
	if tc.Name() == "msvc" {
		return []string{"/c", fmt.Sprintf("/MP%d", threads), "/Fo" + objDir + string(filepath.Separator)}
	}
	return []string{"-c", "-j", fmt.Sprintf("%d", threads), "-o", objDir}
}

// runFallbackPool implements spec.md §4.5 step 3: a pool of single-source
// workers popping from a shared, shuffled skip-stack under a lock. A
// deterministic failure in source ordering must not lock up the pool, hence
// the shuffle before re-queueing.
func (d *Dispatcher) runFallbackPool(skip []outofdate.Decision, prefix []string, configuredThreads int) (failed []string, compiledCount int) {
	shuffled := make([]outofdate.Decision, len(skip))
	copy(shuffled, skip)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var mu sync.Mutex
	idx := 0
	var errorCount int64
	var failedMu sync.Mutex

	threads := clampBatchThreads(configuredThreads, len(shuffled))
	var wg sync.WaitGroup
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if idx >= len(shuffled) {
					mu.Unlock()
					return
				}
				dec := shuffled[idx]
				idx++
				mu.Unlock()

				args := append(append([]string{}, prefix...), singleCompileFlags(d.toolchain, dec.ObjectPath)...)
				args = append(args, dec.Source)
				result := common.Run(d.toolchain.EnvPrelude(), d.toolchain.CompilerExe(), args)
				if result.ExitCode != 0 {
					atomic.AddInt64(&errorCount, 1)
					failedMu.Lock()
					failed = append(failed, dec.Source)
					failedMu.Unlock()
					if d.logger != nil {
						d.logger.Error("fallback compile failed for", dec.Source, string(result.Stderr))
					}
					continue
				}
				failedMu.Lock()
				compiledCount++
				failedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	return failed, compiledCount
}

func singleCompileFlags(tc toolchain.Toolchain, objPath string) []string {
	if tc.Name() == "msvc" {
		return []string{"/c", "/Fo" + objPath}
	}
	return []string{"-c", "-o", objPath}
}
