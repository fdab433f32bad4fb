// Package tscache implements component C1, the timestamp/hash cache: a
// stable, cross-run "last content-change time" for a file, as specified in
// spec.md §4.1. The hashing idiom (hash the file content with sha256, compare
// against a previously stored digest) is grounded on the
// teacher's CalcSHA256OfFile (VKCOM/nocc internal/client/includes-collector.go).
package tscache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fbuildtools/fbuild/internal/common"
)

// hashWhitelist mirrors spec.md §3's CacheEntry invariant: entries (and
// hashing) only exist for these extensions; everything else is a raw mtime read.
var hashWhitelist = map[string]bool{
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cxx": true, ".rc": true,
}

func isHashWhitelisted(path string) bool {
	return hashWhitelist[strings.ToLower(filepath.Ext(path))]
}

type entry struct {
	ts   uint64 // TimestampSeconds
	hash common.SHA256
}

// Cache is component C1. One Cache is shared across a whole build run (and,
// via persistence, across runs); it is safe for concurrent use by many
// dependency-scan and out-of-date-evaluator workers.
type Cache struct {
	mu        sync.Mutex
	persistFn string
	memo      map[string]uint64 // in-run memoization: first access per path wins for the run
	persisted map[string]entry  // cross-run, hash-guarded entries (whitelisted extensions only)
	dirty     bool
	logger    *common.Logger
}

// DefaultPersistPath returns the well-known cache file location from spec.md §6.
func DefaultPersistPath() string {
	return filepath.Join(os.TempDir(), "FBuild_TimestampCache_v1.txt")
}

// Load reads the persistent cache from persistFn, tolerating a missing or
// corrupt file (spec.md §4.1/§7: CacheCorruption is logged and recovered, never fatal).
func Load(persistFn string, logger *common.Logger) *Cache {
	c := &Cache{
		persistFn: persistFn,
		memo:      make(map[string]uint64, 1024),
		persisted: make(map[string]entry, 1024),
		logger:    logger,
	}

	f, err := os.Open(persistFn)
	if err != nil {
		if !os.IsNotExist(err) && logger != nil {
			logger.Error("timestamp cache: could not open", persistFn, err)
		}
		return c
	}
	defer f.Close()

	c.loadFrom(f)
	return c
}

func (c *Cache) loadFrom(r *os.File) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		path, ts, hash, ok := parseCacheLine(scanner.Text())
		if !ok {
			continue // malformed record: skip to the next, per spec.md §4.1
		}
		if !isHashWhitelisted(path) {
			continue // entries only exist for whitelisted extensions
		}
		c.persisted[path] = entry{ts: ts, hash: hash}
	}
}

// parseCacheLine parses one `<quoted path> <ts> <hex hash>` record.
func parseCacheLine(line string) (path string, ts uint64, hash common.SHA256, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '"' {
		return
	}
	closeQuote := strings.IndexByte(line[1:], '"')
	if closeQuote == -1 {
		return
	}
	path = line[1 : 1+closeQuote]
	rest := strings.TrimSpace(line[1+closeQuote+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return
	}
	parsedTs, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return
	}
	var parsedHash common.SHA256
	if err := parsedHash.FromHexString(fields[1]); err != nil {
		return
	}
	return path, parsedTs, parsedHash, true
}

func formatCacheLine(path string, ts uint64, hash common.SHA256) string {
	return fmt.Sprintf("%q %d %s\n", path, ts, hash.ToHexString())
}

// LastWriteTime is the C1 contract: lastWriteTime(path) -> TimestampSeconds.
// Returns 0 when the file is inaccessible. Thread-safe.
func (c *Cache) LastWriteTime(path string) uint64 {
	canon, err := common.CanonicalPath(path)
	if err != nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.memo[canon]; ok {
		return ts // in-run memoization: fixed for the remainder of the run
	}

	ts := c.resolveLocked(canon)
	c.memo[canon] = ts
	return ts
}

func (c *Cache) resolveLocked(canon string) uint64 {
	stat, err := os.Stat(canon)
	if err != nil {
		return 0
	}
	fsTs := uint64(stat.ModTime().Unix())

	if !isHashWhitelisted(canon) {
		return fsTs
	}

	prev, hadPrev := c.persisted[canon]
	if !hadPrev {
		hash, err := common.HashFile(canon)
		if err != nil {
			return fsTs
		}
		c.persisted[canon] = entry{ts: fsTs, hash: hash}
		c.dirty = true
		return fsTs
	}

	if fsTs <= prev.ts {
		return prev.ts
	}

	// fs mtime advanced: re-hash, and only bump the stored ts if content actually changed.
	hash, err := common.HashFile(canon)
	if err != nil {
		return prev.ts
	}
	if hash.Equal(prev.hash) {
		return prev.ts
	}
	c.persisted[canon] = entry{ts: fsTs, hash: hash}
	c.dirty = true
	return fsTs
}

// Save flushes dirty entries to disk with a last-writer-wins merge against any
// concurrent external update, per spec.md §4.1. A no-op if nothing changed.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Cache) saveLocked() error {
	if !c.dirty {
		return nil
	}

	merged := make(map[string]entry, len(c.persisted))
	for k, v := range c.persisted {
		merged[k] = v
	}

	if f, err := os.Open(c.persistFn); err == nil {
		onDisk := &Cache{persisted: make(map[string]entry)}
		onDisk.loadFrom(f)
		_ = f.Close()
		for path, diskEntry := range onDisk.persisted {
			if cur, ok := merged[path]; !ok || diskEntry.ts > cur.ts {
				merged[path] = diskEntry
			}
		}
	}

	tmp, err := common.OpenTempFile(c.persistFn)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("timestamp cache: could not open temp file for save", err)
		}
		return err
	}
	w := bufio.NewWriter(tmp)
	for path, e := range merged {
		if _, err := w.WriteString(formatCacheLine(path, e.ts, e.hash)); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	_ = tmp.Close()
	if err := os.Rename(tmp.Name(), c.persistFn); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	c.persisted = merged
	c.dirty = false
	return nil
}

// FlushOnShutdown is the unconditional destructor-style flush spec.md §5
// requires: call it via defer in the top-level driver. I/O errors are logged,
// never surfaced as a build failure.
func (c *Cache) FlushOnShutdown() {
	if err := c.Save(); err != nil && c.logger != nil {
		c.logger.Error("timestamp cache: save failed at shutdown", err)
	}
}

// Now is exposed only so tests can sanity-check format without depending on
// wall-clock time directly.
func Now() uint64 {
	return uint64(time.Now().Unix())
}
