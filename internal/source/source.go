// Package source implements scheduler.LineSource (spec.md §5/§6.1):
// reading from files or stdin, auto-detecting gzip, and optionally
// following a growing file like `tail -f`.
//
// Grounded on the teacher's internal/monitors.FileMonitor
// (logTailer/workerPool): a tailer goroutine owning the blocking I/O,
// pushing lines onto a bounded channel a separate consumer drains. This
// package keeps that shape — one goroutine per source doing blocking
// reads, one Lines() channel the scheduler drains — but drops the
// worker-pool fan-out (internal/scheduler's own Chunker/Batcher/worker
// pool already does that job) and generalizes single-file tailing into
// three source kinds: a static file, stdin, and a follow-mode file.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/nxadm/tail"

	"kelora/internal/scheduler"
)

// gzipMagic is the three-byte gzip member header spec.md's Scenario F
// auto-detects ("first three bytes are 1F 8B 08").
var gzipMagic = []byte{0x1f, 0x8b, 0x08}

// maybeDecompress peeks at r's first three bytes and, unless noDecompress
// is set, wraps r in a klauspost/compress/gzip.Reader when they match the
// gzip magic. klauspost's gzip.Reader is multistream-aware by default
// (same as the stdlib package it mirrors), so a concatenation of gzip
// members decompresses as one continuous stream without extra code here.
func maybeDecompress(r io.Reader, noDecompress bool) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	peek, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return br, nil
	}
	if noDecompress || !bytes.Equal(peek, gzipMagic) {
		return br, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("source: opening gzip stream: %w", err)
	}
	return gz, nil
}

// StaticFile reads filename once to EOF, optionally gzip-decompressed,
// and closes its Lines channel when done. Grounded on logTailer's
// blocking-read/bounded-channel shape, without follow mode.
type StaticFile struct {
	filename     string
	noDecompress bool
	out          chan scheduler.Line
	err          error
}

func NewStaticFile(filename string, noDecompress bool) *StaticFile {
	return &StaticFile{filename: filename, noDecompress: noDecompress, out: make(chan scheduler.Line, 256)}
}

// Run opens the file and streams it into Lines(); call in its own
// goroutine. Stop reading early by canceling doneCh.
func (f *StaticFile) Run(doneCh <-chan struct{}) {
	defer close(f.out)

	file, err := os.Open(f.filename)
	if err != nil {
		f.err = fmt.Errorf("source: opening %s: %w", f.filename, err)
		return
	}
	defer file.Close()

	r, err := maybeDecompress(file, f.noDecompress)
	if err != nil {
		f.err = err
		return
	}

	scanner := newLineScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		select {
		case <-doneCh:
			return
		case f.out <- scheduler.Line{Filename: f.filename, LineNumber: lineNo, Text: scanner.Text()}:
		}
	}
	if err := scanner.Err(); err != nil {
		f.err = fmt.Errorf("source: reading %s: %w", f.filename, err)
	}
}

func (f *StaticFile) Lines() <-chan scheduler.Line { return f.out }
func (f *StaticFile) Err() error                   { return f.err }

// newLineScanner builds a bufio.Scanner sized well above the default
// 64KiB token limit, since a single structured log line (a JSON object
// with a large stack trace, say) can exceed it.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	const maxLine = 8 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return scanner
}

// Stdin reads os.Stdin to EOF, the same shape as StaticFile but without a
// named file to reopen or gzip-peek against a seekable handle.
type Stdin struct {
	noDecompress bool
	out          chan scheduler.Line
	err          error
}

func NewStdin(noDecompress bool) *Stdin {
	return &Stdin{noDecompress: noDecompress, out: make(chan scheduler.Line, 256)}
}

func (s *Stdin) Run(doneCh <-chan struct{}) {
	defer close(s.out)

	r, err := maybeDecompress(os.Stdin, s.noDecompress)
	if err != nil {
		s.err = err
		return
	}

	scanner := newLineScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		select {
		case <-doneCh:
			return
		case s.out <- scheduler.Line{Filename: "-", LineNumber: lineNo, Text: scanner.Text()}:
		}
	}
	if err := scanner.Err(); err != nil {
		s.err = fmt.Errorf("source: reading stdin: %w", err)
	}
}

func (s *Stdin) Lines() <-chan scheduler.Line { return s.out }
func (s *Stdin) Err() error                   { return s.err }
