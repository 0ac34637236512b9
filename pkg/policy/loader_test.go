package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadFromPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	writeFile("classification.dlog", `
# Users allowed into the system.
allowed(x) :- user(x), not banned(x)
user("alice")
user("mallory")
banned("mallory")
`)
	writeFile("access.dlog", `admin("root")`)
	writeFile("notes.txt", `not a policy`)

	rt := newTestRuntime(t)
	loader := NewLoader(rt, zerolog.Nop())

	loaded, err := loader.LoadFromPaths(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	// classification.dlog landed in the default policy.
	result, err := rt.Query(context.Background(), DefaultPolicy, `allowed(x)`)
	require.NoError(t, err)
	assert.Equal(t, []string{`allowed("alice")`}, result.Results)

	// access.dlog created its own policy.
	info, err := rt.GetPolicy("access")
	require.NoError(t, err)
	assert.Equal(t, "access", info.Name)
}

func TestLoader_ReloadReplacesContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classification.dlog")
	require.NoError(t, os.WriteFile(path, []byte(`flag("old")`), 0644))

	rt := newTestRuntime(t)
	loader := NewLoader(rt, zerolog.Nop())
	ctx := context.Background()

	_, err := loader.LoadFromPaths(ctx, []string{dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`flag("new")`), 0644))
	loader.ClearCache()

	_, err = loader.LoadFromPaths(ctx, []string{dir})
	require.NoError(t, err)

	rules, err := rt.Content(DefaultPolicy)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, `flag("new")`, rules[0].String())
}

func TestLoader_WatchEmptiesPolicyOfDeletedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.dlog")
	require.NoError(t, os.WriteFile(path, []byte(`admin("root")`), 0644))

	rt := newTestRuntime(t)
	loader := NewLoader(rt, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := loader.LoadFromPaths(ctx, []string{dir})
	require.NoError(t, err)
	require.NoError(t, loader.Watch(ctx, []string{dir}))
	defer func() { _ = loader.StopWatching() }()

	rules, err := rt.Content("access")
	require.NoError(t, err)
	require.Len(t, rules, 1)

	require.NoError(t, os.Remove(path))

	deadline := time.After(5 * time.Second)
	for {
		rules, err := rt.Content("access")
		require.NoError(t, err)
		if len(rules) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the deleted file's policy to empty")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestLoader_ParseErrorFailsFileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.dlog")
	require.NoError(t, os.WriteFile(path, []byte(`p(x :- q(x)`), 0644))

	rt := newTestRuntime(t)
	loader := NewLoader(rt, zerolog.Nop())

	// Loading the file directly surfaces the parse error.
	_, err := loader.LoadFromPaths(context.Background(), []string{path})
	assert.Error(t, err)

	// Loading the directory skips the broken file and continues.
	loaded, err := loader.LoadFromPaths(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
