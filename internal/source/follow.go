package source

import (
	"fmt"
	"io"

	"github.com/nxadm/tail"

	"kelora/internal/scheduler"
)

// FollowFile implements "--follow" (spec.md §6.1): tail a growing file
// like `tail -f`, reopening it across log rotation. Grounded directly on
// the teacher's logTailer/newLogTailer (internal/monitors/file_monitor.go):
// same tail.Config{Follow, ReOpen, Location} shape and the same
// select-on-ctx-or-tailer.Lines run loop, with the worker-pool hop
// removed since internal/scheduler's own Chunker is the next consumer.
type FollowFile struct {
	filename string
	seekEnd  bool
	t        *tail.Tail
	out      chan scheduler.Line
	err      error
}

// NewFollowFile builds a follower for filename. seekEnd mirrors the
// teacher's determineSeekPosition "end"/ignore-old-timestamps case:
// true starts at EOF (only new lines are delivered), false starts at the
// beginning of the file.
func NewFollowFile(filename string, seekEnd bool) (*FollowFile, error) {
	loc := &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	if seekEnd {
		loc = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(filename, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: loc,
		Poll:     false,
	})
	if err != nil {
		return nil, fmt.Errorf("source: following %s: %w", filename, err)
	}
	return &FollowFile{filename: filename, seekEnd: seekEnd, t: t, out: make(chan scheduler.Line, 256)}, nil
}

// Run streams tailed lines into Lines() until doneCh closes or the
// tailer hits a terminal error, matching logTailer.run's ctx-or-Lines
// select loop.
func (f *FollowFile) Run(doneCh <-chan struct{}) {
	defer close(f.out)
	defer f.t.Cleanup()

	lineNo := 0
	for {
		select {
		case <-doneCh:
			if err := f.t.Stop(); err != nil {
				f.err = fmt.Errorf("source: stopping tailer for %s: %w", f.filename, err)
			}
			return
		case line, ok := <-f.t.Lines:
			if !ok {
				if err := f.t.Err(); err != nil {
					f.err = fmt.Errorf("source: tailing %s: %w", f.filename, err)
				}
				return
			}
			if line.Err != nil {
				f.err = fmt.Errorf("source: reading line from %s: %w", f.filename, line.Err)
				continue
			}
			lineNo++
			select {
			case <-doneCh:
				return
			case f.out <- scheduler.Line{Filename: f.filename, LineNumber: lineNo, Text: line.Text}:
			}
		}
	}
}

func (f *FollowFile) Lines() <-chan scheduler.Line { return f.out }
func (f *FollowFile) Err() error                   { return f.err }
