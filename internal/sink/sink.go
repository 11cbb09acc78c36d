package sink

import (
	"io"
	"sync"

	"kelora/internal/event"
)

// Sink bundles a Formatter with the io.Writer it writes to, guarding
// every write with a mutex held across format-then-write — grounded on
// logFile.writeEntry's mutex-then-format-then-write shape, since
// multiple scheduler workers can share one destination (a single
// stdout, or one script-opened file) and interleaved writes would
// otherwise corrupt lines.
type Sink struct {
	w   io.Writer
	fmt Formatter
	mu  sync.Mutex
}

func New(w io.Writer, f Formatter) *Sink {
	return &Sink{w: w, fmt: f}
}

func (s *Sink) Write(ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.fmt.Format(ev)
	if err != nil {
		return err
	}
	_, err = s.w.Write(b)
	return err
}

// NewFormatter selects a Formatter by the output-format name spec.md
// §6.1 accepts ("text", "json", "logfmt", "csv"/"tsv"), sharing one
// KeyProjection/TimestampDisplay/Style across whichever is chosen.
func NewFormatter(format string, proj KeyProjection, ts TimestampDisplay, style Style) Formatter {
	switch format {
	case "logfmt":
		return &LogfmtFormatter{Projection: proj, Timestamps: ts}
	case "csv":
		return &CSVFormatter{Projection: proj, Timestamps: ts}
	case "tsv":
		return &CSVFormatter{Projection: proj, Timestamps: ts, Delimiter: '\t'}
	case "text":
		return &TextFormatter{Projection: proj, Timestamps: ts, Style: style}
	case "json":
		fallthrough
	default:
		return &JSONFormatter{Projection: proj, Timestamps: ts}
	}
}
