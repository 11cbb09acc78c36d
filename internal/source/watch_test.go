package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirWatcherDiscoversNewMatchingFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDirWatcher(dir, "*.log", func(filename string) (Runner, error) {
		return NewStaticFile(filename, false), nil
	})
	require.NoError(t, err)

	doneCh := make(chan struct{})
	go w.Run(doneCh)
	defer close(doneCh)

	staging := filepath.Join(t.TempDir(), "fresh.log")
	require.NoError(t, os.WriteFile(staging, []byte("hello\n"), 0o644))
	path := filepath.Join(dir, "fresh.log")
	require.NoError(t, os.Rename(staging, path))

	select {
	case line, ok := <-w.Lines():
		require.True(t, ok)
		assert.Equal(t, "hello", line.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("DirWatcher never surfaced the new file's contents")
	}
}

func TestDirWatcherIgnoresNonMatchingFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDirWatcher(dir, "*.log", func(filename string) (Runner, error) {
		return NewStaticFile(filename, false), nil
	})
	require.NoError(t, err)

	doneCh := make(chan struct{})
	go w.Run(doneCh)
	defer close(doneCh)

	path := filepath.Join(dir, "fresh.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	select {
	case line := <-w.Lines():
		t.Fatalf("unexpected line from a non-matching file: %+v", line)
	case <-time.After(300 * time.Millisecond):
	}
}
