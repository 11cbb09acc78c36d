package source

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.log")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestStaticFileReadsLinesInOrder(t *testing.T) {
	path := writeTempFile(t, "one\ntwo\nthree\n")
	f := NewStaticFile(path, false)
	doneCh := make(chan struct{})

	go f.Run(doneCh)

	var got []string
	for line := range f.Lines() {
		got = append(got, line.Text)
	}
	require.NoError(t, f.Err())
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestStaticFileDecompressesGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.log.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	f := NewStaticFile(path, false)
	doneCh := make(chan struct{})
	go f.Run(doneCh)

	var got []string
	for line := range f.Lines() {
		got = append(got, line.Text)
	}
	require.NoError(t, f.Err())
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestStaticFileNoDecompressTreatsGzipAsRawText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.log.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	f := NewStaticFile(path, true)
	doneCh := make(chan struct{})
	go f.Run(doneCh)

	count := 0
	for range f.Lines() {
		count++
	}
	require.NoError(t, f.Err())
	assert.NotEqual(t, 2, count, "raw gzip bytes should not parse as the two original lines")
}

func TestStaticFileReportsOpenError(t *testing.T) {
	f := NewStaticFile(filepath.Join(t.TempDir(), "missing.log"), false)
	doneCh := make(chan struct{})
	go f.Run(doneCh)

	for range f.Lines() {
		t.Fatal("expected no lines from a missing file")
	}
	assert.Error(t, f.Err())
}

func TestMultiFansInAllSources(t *testing.T) {
	pathA := writeTempFile(t, "a1\na2\n")
	pathB := writeTempFile(t, "b1\n")

	m := NewMulti(NewStaticFile(pathA, false), NewStaticFile(pathB, false))
	m.Start()

	var got []string
	for line := range m.Lines() {
		got = append(got, line.Text)
	}
	assert.Len(t, got, 3)
	assert.NoError(t, m.Err())
}

func TestMultiStopSignalsSources(t *testing.T) {
	path := writeTempFile(t, "x\n")
	m := NewMulti(NewStaticFile(path, false))
	m.Start()
	m.Stop()

	select {
	case <-m.Lines():
	case <-time.After(2 * time.Second):
		t.Fatal("Lines() never closed after Stop")
	}
}
