// Package outofdate implements component C4, the out-of-date evaluator:
// given a compile task, decide which sources actually need recompiling
// (spec.md §4.4). The four-condition staleness check (missing object,
// zero-length object, stale relative to the driving script, stale relative
// to the dependency closure) mirrors the staleness reasoning in the
// teacher's domain (needsBuilding, thought-machine/please src/build/
// incrementality.go) adapted to the timestamp-only model spec.md specifies.
//
// The worker pool uses golang.org/x/sync/errgroup with SetLimit instead of
// the teacher's bespoke channel-based pool, grounded on distr1/distri's
// batch dispatch (cmd/distri/batch.go), which is the clearest errgroup-based
// bounded fan-out in the retrieved corpus.
package outofdate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/depresolve"
	"github.com/fbuildtools/fbuild/internal/tscache"
)

// Decision records, for one source, whether it needs recompiling and the
// dependency closure the resolver computed for it (the dispatcher reuses the
// closure for the PCH hash; it isn't recomputed).
type Decision struct {
	Source     string
	NeedsBuild bool
	ObjectPath string
	Deps       depresolve.DependencySet
}

// Evaluator is component C4.
type Evaluator struct {
	tsCache  *tscache.Cache
	resolver *depresolve.Resolver
}

func New(tsCache *tscache.Cache, resolver *depresolve.Resolver) *Evaluator {
	return &Evaluator{tsCache: tsCache, resolver: resolver}
}

// Workers is the clamp spec.md §4.4 specifies: at least 2, at most
// configuredThreads when set, never more than the input size. FB_MAX_THREADS,
// when set, caps the result regardless of configuredThreads, for operators
// who need a hard ceiling across every task in a script.
func Workers(configuredThreads int, inputLen int) int {
	n := runtime.NumCPU()
	if configuredThreads > 0 {
		n = configuredThreads
	}
	if n < 2 {
		n = 2
	}
	if max, ok := common.EnvInt("FB_MAX_THREADS"); ok && int(max) < n {
		n = int(max)
	}
	if n > inputLen {
		n = inputLen
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Evaluate decides which of sources are out-of-date. objDir, objExt,
// buildScriptFile, forcedPCH and configuredThreads come from the CompileTask;
// dependencyCheck false forces every source to be rebuilt without consulting
// the resolver at all.
func (e *Evaluator) Evaluate(ctx context.Context, sources []string, objDir, objExt, buildScriptFile, forcedPCH string, dependencyCheck bool, configuredThreads int) ([]Decision, error) {
	if !dependencyCheck {
		decisions := make([]Decision, len(sources))
		for i, src := range sources {
			decisions[i] = Decision{
				Source:     src,
				NeedsBuild: true,
				ObjectPath: objectPath(objDir, src, objExt),
			}
		}
		return decisions, nil
	}

	scriptTs := e.tsCache.LastWriteTime(buildScriptFile)

	var mu sync.Mutex
	var idx int
	decisions := make([]Decision, 0, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(configuredThreads, len(sources)))

	for {
		mu.Lock()
		if idx >= len(sources) {
			mu.Unlock()
			break
		}
		i := idx
		idx++
		mu.Unlock()

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			src := sources[i]
			objPath := objectPath(objDir, src, objExt)
			deps, maxDepTs, err := e.resolver.Resolve(src, forcedPCH)
			if err != nil {
				return err
			}
			needs := isOutOfDate(objPath, scriptTs, maxDepTs)

			mu.Lock()
			decisions = append(decisions, Decision{Source: src, NeedsBuild: needs, ObjectPath: objPath, Deps: deps})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func isOutOfDate(objPath string, scriptTs, maxDepTs uint64) bool {
	stat, err := os.Stat(objPath)
	if err != nil {
		return true // object does not exist
	}
	if stat.Size() == 0 {
		return true
	}
	objTs := uint64(stat.ModTime().Unix())
	if objTs < scriptTs {
		return true
	}
	return objTs < maxDepTs
}

func objectPath(objDir, source, objExt string) string {
	return filepath.Join(objDir, common.ReplaceFileExt(filepath.Base(source), objExt))
}
