// This module provides the environment-variable lookups shared by the
// toolchain adapter (C6) and the compile dispatcher (C5): both need a plain
// "does this env var exist, and what does it say" query that doesn't go
// through the CompileTask/viper configuration layer, because toolchain
// discovery and the FB_COMPILER* overrides happen independently of any one
// build script.
package common

import (
	"os"
	"strconv"
)

// EnvString returns the named environment variable and whether it was set
// (and non-empty) at all — the distinction matters for discovery fallback
// chains such as C6's "explicit config, then env, then numbered-version scan".
func EnvString(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// EnvInt is like EnvString but parses the value as a base-10 integer.
func EnvInt(name string) (int64, bool) {
	v, ok := EnvString(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// EnvBool is like EnvString but parses the value as a bool.
func EnvBool(name string) (bool, bool) {
	v, ok := EnvString(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
