package bot

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemovePartials(t *testing.T) {
	dir := t.TempDir()
	b := &Bot{logger: slog.Default()}

	jobID := "aaaa-1111"
	leftovers := []string{
		jobID + "_Some Video.mp4.part",
		jobID + "_Some Video.f137.mp4",
		jobID + "_Some Video.f251.webm",
	}
	for _, name := range leftovers {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	other := filepath.Join(dir, "bbbb-2222_Other Job.mp4")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	b.removePartials(dir, jobID)

	for _, name := range leftovers {
		_, err := os.Stat(filepath.Join(dir, name))
		require.True(t, os.IsNotExist(err), "leftover %s removed", name)
	}

	_, err := os.Stat(other)
	require.NoError(t, err, "other jobs' artifacts untouched")
}

func TestRemovePartialsNothingToRemove(t *testing.T) {
	b := &Bot{logger: slog.Default()}
	require.NotPanics(t, func() {
		b.removePartials(t.TempDir(), "cccc-3333")
	})
}
