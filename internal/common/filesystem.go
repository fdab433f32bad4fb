package common

import (
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strconv"
)

// MkdirForFile ensures the parent directory of fileName exists, e.g. before
// writing an object file into a not-yet-created objDir.
func MkdirForFile(fileName string) error {
	return os.MkdirAll(filepath.Dir(fileName), os.ModePerm)
}

// OpenTempFile opens a sibling temp file for fullPath, for atomic
// write-then-rename saves (timestamp cache, sidecar dependency cache).
func OpenTempFile(fullPath string) (f *os.File, err error) {
	fileNameTmp := fullPath + "." + strconv.Itoa(rand.Int())
	return os.OpenFile(fileNameTmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, os.ModePerm)
}

// ReplaceFileExt swaps the extension of fileName, e.g. "a.cpp" + ".o" -> "a.o".
func ReplaceFileExt(fileName string, newExt string) string {
	curExt := path.Ext(fileName)
	return fileName[0:len(fileName)-len(curExt)] + newExt
}

// CanonicalPath resolves fileName to an absolute, symlink-resolved path, the
// "Path" data model of spec.md §3 that cache keys and the visited-set in the
// dependency resolver are built on.
func CanonicalPath(fileName string) (string, error) {
	abs, err := filepath.Abs(fileName)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// file may not exist yet (e.g. an object file about to be created);
		// fall back to the absolute, cleaned path.
		return filepath.Clean(abs), nil
	}
	return resolved, nil
}

// FileExistsAsRegularFile reports whether fileName exists and is a regular file,
// the existence check the dependency resolver uses (spec.md §4.3) before
// visiting a resolved #include target.
func FileExistsAsRegularFile(fileName string) bool {
	stat, err := os.Stat(fileName)
	return err == nil && stat.Mode().IsRegular()
}
