package scheduler

import (
	"regexp"
	"strings"
	"time"
)

// MultilineMode selects how Chunker joins continuation lines onto a
// logical record (spec.md §6.1 "optional multiline strategy").
type MultilineMode int

const (
	MultilineNone MultilineMode = iota
	MultilineIndent
	MultilineTimestamp
	MultilineRegexStart
	MultilineRegexEnd
	MultilineBoundary
)

// MultilineConfig configures Chunker's join behavior.
type MultilineConfig struct {
	Mode             MultilineMode
	StartPattern     *regexp.Regexp // RegexStart, Boundary: a match opens a new record
	EndPattern       *regexp.Regexp // RegexEnd, Boundary: a match closes the current record
	TimestampPattern *regexp.Regexp // Timestamp: a match opens a new record
	IdleTimeout      time.Duration  // spec.md §5 "multiline_timeout (250-500 ms)"
}

// Record is one logical, possibly multi-line, input record handed to the
// parser.
type Record struct {
	Filename   string
	LineNumber int // line number of the record's first line
	Text       string
}

// Chunker joins continuation lines onto a logical record, flushing the
// current block on an idle timeout so a stalled follow-mode tail doesn't
// hold a record open indefinitely (spec.md §5 "Multiline chunker flush:
// idle >= multiline_timeout forces emission of the current block").
type Chunker struct {
	cfg MultilineConfig
	out chan Record

	cur *Record
	buf strings.Builder
}

func NewChunker(cfg MultilineConfig) *Chunker {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 300 * time.Millisecond
	}
	return &Chunker{cfg: cfg, out: make(chan Record, 64)}
}

// Records returns the channel of completed logical records, closed once
// Run's source is drained.
func (c *Chunker) Records() <-chan Record { return c.out }

// Run reads lines from src until closed, joining continuation lines per
// cfg.Mode, and closes Records() on exit.
func (c *Chunker) Run(src <-chan Line) {
	defer close(c.out)

	if c.cfg.Mode == MultilineNone {
		for line := range src {
			c.out <- Record{Filename: line.Filename, LineNumber: line.LineNumber, Text: line.Text}
		}
		return
	}

	timer := time.NewTimer(c.cfg.IdleTimeout)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case line, ok := <-src:
			if !ok {
				drainTimer(timer)
				c.flush()
				return
			}
			c.handle(line)
			timer.Reset(c.cfg.IdleTimeout)
		case <-timer.C:
			c.flush()
		}
	}
}

func (c *Chunker) handle(line Line) {
	if c.cfg.Mode == MultilineRegexEnd {
		if c.cur == nil {
			c.cur = &Record{Filename: line.Filename, LineNumber: line.LineNumber}
		} else {
			c.buf.WriteByte('\n')
		}
		c.buf.WriteString(line.Text)
		if c.cfg.EndPattern != nil && c.cfg.EndPattern.MatchString(line.Text) {
			c.flush()
		}
		return
	}

	if c.cur != nil && !c.startsNewRecord(line.Text) {
		c.buf.WriteByte('\n')
		c.buf.WriteString(line.Text)
	} else {
		c.flush()
		c.cur = &Record{Filename: line.Filename, LineNumber: line.LineNumber}
		c.buf.WriteString(line.Text)
	}

	if c.cfg.Mode == MultilineBoundary && c.cfg.EndPattern != nil && c.cfg.EndPattern.MatchString(line.Text) {
		c.flush()
	}
}

func (c *Chunker) startsNewRecord(line string) bool {
	switch c.cfg.Mode {
	case MultilineIndent:
		return len(line) == 0 || (line[0] != ' ' && line[0] != '\t')
	case MultilineTimestamp:
		return c.cfg.TimestampPattern != nil && c.cfg.TimestampPattern.MatchString(line)
	case MultilineRegexStart, MultilineBoundary:
		return c.cfg.StartPattern != nil && c.cfg.StartPattern.MatchString(line)
	default:
		return true
	}
}

func (c *Chunker) flush() {
	if c.cur == nil {
		return
	}
	c.cur.Text = c.buf.String()
	c.out <- *c.cur
	c.cur = nil
	c.buf.Reset()
}

func drainTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
