package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBuffer_QuotedAndAngle(t *testing.T) {
	src := []byte(`
#include "local.h"
#include <vector>
#include <map> // trailing comment
`)
	got := ScanBuffer(src)
	require.Len(t, got, 3)
	assert.Equal(t, Directive{Kind: Quoted, Target: "local.h"}, got[0])
	assert.Equal(t, Directive{Kind: Angle, Target: "vector"}, got[1])
	assert.Equal(t, Directive{Kind: Angle, Target: "map"}, got[2])
}

func TestScanBuffer_IgnoresCommentedOutIncludes(t *testing.T) {
	src := []byte(`
// #include "dead.h"
/* #include "also-dead.h"
   #include <still-dead> */
#include "alive.h"
`)
	got := ScanBuffer(src)
	require.Len(t, got, 1)
	assert.Equal(t, "alive.h", got[0].Target)
}

func TestScanBuffer_IncludeNextCollapsesToAngle(t *testing.T) {
	src := []byte(`#include_next <stdlib.h>`)
	got := ScanBuffer(src)
	require.Len(t, got, 1)
	assert.Equal(t, Angle, got[0].Kind)
	assert.Equal(t, "stdlib.h", got[0].Target)
}

func TestScanBuffer_NoIncludes(t *testing.T) {
	assert.Empty(t, ScanBuffer([]byte("int main() { return 0; }\n")))
}

func TestScanBuffer_WhitespaceOnlyTargetDiscarded(t *testing.T) {
	src := []byte("#include \" \"\n#include <\t>\n#include \"real.h\"\n")
	got := ScanBuffer(src)
	require.Len(t, got, 1)
	assert.Equal(t, "real.h", got[0].Target)
}

func TestCache_ScanFile_Memoizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.h")
	require.NoError(t, os.WriteFile(path, []byte(`#include "b.h"`), 0644))

	c := NewCache()
	first, err := c.ScanFile(path)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// mutate the file after the first scan: Cache must still return the
	// memoized result for the remainder of this run.
	require.NoError(t, os.WriteFile(path, []byte(`#include "c.h"`), 0644))
	second, err := c.ScanFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
