// Package depresolve implements component C3, the dependency resolver: the
// transitive closure of files reachable by #include from a translation unit,
// plus the per-file sidecar cache that lets repeat builds skip re-scanning
// unchanged files entirely (spec.md §4.3).
//
// The closure-walk shape (quoted-then-angle resolution order, a visited set
// keyed by canonical path, a forced precompiled header visited first) is
// grounded on the teacher's ownIncludesParser.onHashInclude/resolveIncludedArg
// (VKCOM/nocc internal/client/own-includes-parser.go); the sidecar's
// temp-file-then-rename persistence idiom is grounded on the teacher's
// OwnPch.SaveToOwnPchFile (VKCOM/nocc internal/common/own-pch-files.go),
// adapted from PCH-specific text records to the generic binary per-TU
// dependency list spec.md §6 specifies.
package depresolve

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/scan"
	"github.com/fbuildtools/fbuild/internal/tscache"
)

// DependencySet is the closure produced by Resolve: a set of canonical paths.
type DependencySet map[string]struct{}

func (s DependencySet) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// Resolver is component C3. One Resolver is shared across a build run.
type Resolver struct {
	scanCache *scan.Cache
	tsCache   *tscache.Cache
	includes  []string // configured -I search paths, in order; read-only during a build phase
	logger    *common.Logger
}

func New(scanCache *scan.Cache, tsCache *tscache.Cache, includes []string, logger *common.Logger) *Resolver {
	return &Resolver{scanCache: scanCache, tsCache: tsCache, includes: includes, logger: logger}
}

// Resolve is the C3 contract: resolve(tu) -> (DependencySet, maxDepTs).
// forcedPCH, when non-empty, is visited before tu itself (spec.md §4.3 step 2).
func (r *Resolver) Resolve(tu string, forcedPCH string) (DependencySet, uint64, error) {
	canonTu, err := common.CanonicalPath(tu)
	if err != nil {
		return nil, 0, err
	}

	if !common.FileExistsAsRegularFile(canonTu) {
		// the translation unit itself is gone: its own .cppdeps (and any
		// orphaned sibling sidecars in the same directory) can never be
		// adopted again, per spec.md §9's orphan-pruning open question.
		if r.logger != nil {
			if err := PruneOrphanSidecars(filepath.Dir(canonTu)); err != nil {
				r.logger.Error("dependency resolver: could not prune orphan sidecars in", filepath.Dir(canonTu), err)
			}
		} else {
			_ = PruneOrphanSidecars(filepath.Dir(canonTu))
		}
		return nil, 0, fmt.Errorf("dependency resolver: translation unit does not exist: %s", canonTu)
	}

	if deps, maxTs, ok := r.adoptSidecar(canonTu); ok {
		return deps, maxTs, nil
	}

	set := make(DependencySet, 64)
	if forcedPCH != "" {
		if canonPch, err := common.CanonicalPath(forcedPCH); err == nil {
			r.visit(canonPch, set)
		}
	}
	r.visit(canonTu, set)

	var maxDepTs uint64
	entries := make([]sidecarEntry, 0, len(set))
	for dep := range set {
		ts := r.tsCache.LastWriteTime(dep)
		if ts > maxDepTs {
			maxDepTs = ts
		}
		entries = append(entries, sidecarEntry{path: dep, ts: ts})
	}

	if err := writeSidecar(sidecarPath(canonTu), canonTu, entries); err != nil && r.logger != nil {
		r.logger.Error("dependency resolver: could not write sidecar cache for", canonTu, err)
	}

	return set, maxDepTs, nil
}

// visit walks tu (or a header reached transitively from it), inserting every
// resolved #include target into set. Already-visited paths stop recursion.
func (r *Resolver) visit(current string, set DependencySet) {
	if _, seen := set[current]; seen {
		return
	}
	set[current] = struct{}{}

	directives, err := r.scanCache.ScanFile(current)
	if err != nil {
		return // unreadable file: silently dropped, as spec.md §4.2 prescribes for the scanner
	}

	dir := filepath.Dir(current)
	for _, d := range directives {
		var resolved string
		switch d.Kind {
		case scan.Quoted:
			resolved = r.resolveQuoted(dir, d.Target)
		default:
			resolved = r.resolveAngle(dir, d.Target)
		}
		if resolved == "" {
			continue // nothing resolves: directive silently dropped
		}
		if canon, err := common.CanonicalPath(resolved); err == nil {
			r.visit(canon, set)
		}
	}
}

func (r *Resolver) resolveQuoted(parentDir, target string) string {
	candidate := filepath.Join(parentDir, target)
	if common.FileExistsAsRegularFile(candidate) {
		return candidate
	}
	return r.resolveAngle(parentDir, target)
}

func (r *Resolver) resolveAngle(parentDir, target string) string {
	for _, dir := range r.includes {
		candidate := filepath.Join(dir, target)
		if common.FileExistsAsRegularFile(candidate) {
			return candidate
		}
	}
	// last resort, per spec.md §4.3 step 3
	candidate := filepath.Join(parentDir, target)
	if common.FileExistsAsRegularFile(candidate) {
		return candidate
	}
	return ""
}

// sidecarPath is the <file>.cppdeps convention resolving spec.md §9's open
// question about a portable replacement for the OS alternate-data-stream design.
func sidecarPath(tu string) string {
	return tu + ".cppdeps"
}

type sidecarEntry struct {
	path string
	ts   uint64
}

// adoptSidecar implements spec.md §4.3 step 1: if every recorded dependency
// still has the timestamp recorded at sidecar-write time, the closure is
// adopted without a fresh scan.
func (r *Resolver) adoptSidecar(tu string) (DependencySet, uint64, bool) {
	self, entries, err := readSidecar(sidecarPath(tu))
	if err != nil || self != tu {
		return nil, 0, false
	}

	set := make(DependencySet, len(entries))
	var maxTs uint64
	for _, e := range entries {
		if r.tsCache.LastWriteTime(e.path) != e.ts {
			return nil, 0, false
		}
		set[e.path] = struct{}{}
		if e.ts > maxTs {
			maxTs = e.ts
		}
	}
	return set, maxTs, true
}

var sidecarMu sync.Mutex // serializes sidecar writes from concurrent workers

func writeSidecar(path string, self string, entries []sidecarEntry) error {
	sidecarMu.Lock()
	defer sidecarMu.Unlock()

	tmp, err := common.OpenTempFile(path)
	if err != nil {
		return err
	}

	if err := writeLengthPrefixed(tmp, self); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := binary.Write(tmp, binary.BigEndian, uint32(len(entries))); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	for _, e := range entries {
		if err := writeLengthPrefixed(tmp, e.path); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
		if err := binary.Write(tmp, binary.BigEndian, e.ts); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readSidecar(path string) (self string, entries []sidecarEntry, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	self, err = readLengthPrefixed(f)
	if err != nil {
		return "", nil, err
	}

	var count uint32
	if err := binary.Read(f, binary.BigEndian, &count); err != nil {
		return "", nil, err
	}

	entries = make([]sidecarEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		depPath, err := readLengthPrefixed(f)
		if err != nil {
			return "", nil, err
		}
		var ts uint64
		if err := binary.Read(f, binary.BigEndian, &ts); err != nil {
			return "", nil, err
		}
		entries = append(entries, sidecarEntry{path: depPath, ts: ts})
	}
	return self, entries, nil
}

func writeLengthPrefixed(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLengthPrefixed(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// PruneOrphanSidecars removes <file>.cppdeps entries under dir whose source
// file no longer exists, resolving spec.md §9's second open question (a
// sidecar must not silently accumulate once its source is deleted).
func PruneOrphanSidecars(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	const suffix = ".cppdeps"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		source := filepath.Join(dir, name[:len(name)-len(suffix)])
		if !common.FileExistsAsRegularFile(source) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}
