package grid

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderWatcherReportsSpirvWrites(t *testing.T) {
	dir := t.TempDir()
	sw, err := NewShaderWatcher(dir)
	require.NoError(t, err)
	defer sw.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid.frag.spv"), minimalSpirv, 0o644))

	select {
	case name := <-sw.Requests():
		assert.Equal(t, "grid.frag.spv", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload request for a written shader")
	}
}

func TestShaderWatcherMissingDir(t *testing.T) {
	_, err := NewShaderWatcher(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestShaderWatcherCloseTwice(t *testing.T) {
	sw, err := NewShaderWatcher(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, sw.Close())
	assert.NoError(t, sw.Close())
}
