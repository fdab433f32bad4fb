package depresolve

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fbuildtools/fbuild/internal/common"
)

// PchHash computes a content-and-command-line digest for a precompiled
// header: its dependency closure's hashes, folded together with XorWith, plus
// the header name and compiler argument list. The compile dispatcher (C5)
// uses it to recognize when a previously built .pch is still valid for the
// current CompileTask, even though the header's own mtime check already
// covers content drift.
//
// Adapted from the teacher's OwnPch.CalcPchHash (VKCOM/nocc
// internal/common/own-pch-files.go), which folds per-dependency hashes the
// same way to identify a pch build that can be reused across invocations.
func PchHash(pchHeader string, cxxArgs []string, deps DependencySet) (common.SHA256, error) {
	depsStr := strings.Builder{}
	depsStr.Grow(4096)
	depsStr.WriteString("; args = ")
	for _, arg := range cxxArgs {
		depsStr.WriteString(arg)
		depsStr.WriteString(" ")
	}
	depsStr.WriteString("; deps ")
	depsStr.WriteString(strconv.Itoa(len(deps)))
	depsStr.WriteString("; in ")
	depsStr.WriteString(filepath.Base(pchHeader))

	hash := common.HashBytes([]byte(depsStr.String()))

	for _, dep := range deps.Paths() {
		depHash, err := common.HashFile(dep)
		if err != nil {
			continue // unreadable dependency: excluded from the digest, same as a scan miss
		}
		hash.XorWith(&depHash)
	}
	return hash, nil
}
