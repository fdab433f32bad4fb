package build

import (
	"fmt"
	"os"

	"github.com/fbuildtools/fbuild/internal/tscache"
)

// CacheStat reports the size of the persistent timestamp cache file, for
// `fbuild cache stat`.
func CacheStat() (path string, sizeBytes int64, exists bool, err error) {
	path = tscache.DefaultPersistPath()
	stat, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		return path, 0, false, nil
	}
	if statErr != nil {
		return path, 0, false, statErr
	}
	return path, stat.Size(), true, nil
}

// CacheClear removes the persistent timestamp cache file, for
// `fbuild cache clear`.
func CacheClear() error {
	path := tscache.DefaultPersistPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("build: could not clear cache %s: %w", path, err)
	}
	return nil
}
