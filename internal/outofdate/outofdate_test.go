package outofdate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuildtools/fbuild/internal/depresolve"
	"github.com/fbuildtools/fbuild/internal/scan"
	"github.com/fbuildtools/fbuild/internal/tscache"
)

func setup(t *testing.T) (dir string, eval *Evaluator) {
	t.Helper()
	dir = t.TempDir()
	tsCache := tscache.Load(filepath.Join(dir, "ts.txt"), nil)
	resolver := depresolve.New(scan.NewCache(), tsCache, nil, nil)
	return dir, New(tsCache, resolver)
}

func TestEvaluate_MissingObjectIsOutOfDate(t *testing.T) {
	dir, eval := setup(t)
	src := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(src, []byte("int main(){}"), 0644))
	script := filepath.Join(dir, "build.toml")
	require.NoError(t, os.WriteFile(script, []byte(""), 0644))

	decisions, err := eval.Evaluate(context.Background(), []string{src}, dir, ".o", script, "", true, 0)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].NeedsBuild)
}

func TestEvaluate_UpToDateObjectSkipped(t *testing.T) {
	dir, eval := setup(t)
	src := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(src, []byte("int main(){}"), 0644))
	script := filepath.Join(dir, "build.toml")
	require.NoError(t, os.WriteFile(script, []byte(""), 0644))

	obj := filepath.Join(dir, "a.o")
	require.NoError(t, os.WriteFile(obj, []byte("x"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(obj, future, future))

	decisions, err := eval.Evaluate(context.Background(), []string{src}, dir, ".o", script, "", true, 0)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].NeedsBuild)
}

func TestEvaluate_ZeroLengthObjectIsOutOfDate(t *testing.T) {
	dir, eval := setup(t)
	src := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(src, []byte("int main(){}"), 0644))
	script := filepath.Join(dir, "build.toml")
	require.NoError(t, os.WriteFile(script, []byte(""), 0644))

	obj := filepath.Join(dir, "a.o")
	require.NoError(t, os.WriteFile(obj, nil, 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(obj, future, future))

	decisions, err := eval.Evaluate(context.Background(), []string{src}, dir, ".o", script, "", true, 0)
	require.NoError(t, err)
	assert.True(t, decisions[0].NeedsBuild)
}

func TestEvaluate_DependencyCheckDisabledRebuildsAll(t *testing.T) {
	dir, eval := setup(t)
	src := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(src, []byte("int main(){}"), 0644))
	obj := filepath.Join(dir, "a.o")
	require.NoError(t, os.WriteFile(obj, []byte("x"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(obj, future, future))

	decisions, err := eval.Evaluate(context.Background(), []string{src}, dir, ".o", "", "", false, 0)
	require.NoError(t, err)
	assert.True(t, decisions[0].NeedsBuild)
}

func TestWorkers_Clamped(t *testing.T) {
	assert.Equal(t, 1, Workers(0, 1))
	assert.GreaterOrEqual(t, Workers(0, 100), 2)
	assert.Equal(t, 3, Workers(8, 3))
}

func TestWorkers_FbMaxThreadsCapsResult(t *testing.T) {
	os.Setenv("FB_MAX_THREADS", "2")
	t.Cleanup(func() { os.Unsetenv("FB_MAX_THREADS") })

	assert.Equal(t, 2, Workers(8, 100))
}
