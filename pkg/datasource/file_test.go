package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFactsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileDriver_Poll(t *testing.T) {
	path := writeFactsFile(t, `
virtual_machine:
  - ["vm-1"]
  - ["vm-2"]
network:
  - ["vm-1", "net-1"]
cpu_count:
  - ["vm-1", 4]
`)

	d := NewFileDriver()
	require.NoError(t, d.Validate(map[string]string{"path": path}))

	snap, err := d.Poll(context.Background(), map[string]string{"path": path})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu_count", "network", "virtual_machine"}, snap.Tables)
	assert.Len(t, snap.Facts, 4)
}

func TestFileDriver_Validate(t *testing.T) {
	d := NewFileDriver()

	assert.Error(t, d.Validate(nil))
	assert.Error(t, d.Validate(map[string]string{"path": "/does/not/exist.yaml"}))
}

func TestFileDriver_BadContent(t *testing.T) {
	d := NewFileDriver()
	ctx := context.Background()

	path := writeFactsFile(t, `virtual_machine: "not a list"`)
	_, err := d.Poll(ctx, map[string]string{"path": path})
	assert.Error(t, err)

	// Nested structures are not valid fact arguments.
	path = writeFactsFile(t, `
virtual_machine:
  - [{"name": "vm-1"}]
`)
	_, err = d.Poll(ctx, map[string]string{"path": path})
	assert.Error(t, err)
}
