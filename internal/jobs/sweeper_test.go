package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDirRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "upload-stale.jpg")
	fresh := filepath.Join(dir, "upload-fresh.jpg")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	swept, err := sweepDir(dir, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepDirIgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "keep")
	require.NoError(t, os.Mkdir(sub, 0o755))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(sub, old, old))

	swept, err := sweepDir(dir, time.Now())
	require.NoError(t, err)
	assert.Zero(t, swept)

	_, err = os.Stat(sub)
	assert.NoError(t, err)
}

func TestSweepDirMissingDirectoryIsNoop(t *testing.T) {
	swept, err := sweepDir(filepath.Join(t.TempDir(), "nope"), time.Now())
	require.NoError(t, err)
	assert.Zero(t, swept)
}
