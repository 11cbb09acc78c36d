// Package diag implements Kelora's end-of-run diagnostics surface
// (spec.md §6.1 "Diagnostics": --stats, --metrics, --metrics-file,
// --no-section-headers, --explain, --trace=<selector>): the stderr
// stage-statistics summary, the optional JSON metrics file sharing the
// same keys (spec.md §6.3), a Prometheus "--metrics" HTTP server, and an
// OpenTelemetry span tree for "--trace".
//
// Grounded on the teacher's internal/metrics.EnhancedMetrics
// (UpdateSystemMetrics' gopsutil/runtime resource sampling) and
// internal/app's statsHandler (the nested-JSON shape of a stats
// response), generalized from Prometheus-gauge plumbing and an HTTP
// response body into a renderer that can target either stderr or a file.
package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"kelora/internal/parser"
	"kelora/internal/tracker"
)

// Counters are the run-wide totals the summary and metrics file both
// report, kept as atomics since sequential and parallel schedulers alike
// update them without a shared lock (spec.md §5 "the coordinator merges
// trackers and diagnostics on shutdown").
type Counters struct {
	LinesRead      int64
	EventsParsed   int64
	ParseErrors    int64
	EventsEmitted  int64
	EventsSkipped  int64
	ScriptErrors   int64
}

func (c *Counters) AddLinesRead(n int64)     { atomic.AddInt64(&c.LinesRead, n) }
func (c *Counters) AddEventsParsed(n int64)  { atomic.AddInt64(&c.EventsParsed, n) }
func (c *Counters) AddParseError()           { atomic.AddInt64(&c.ParseErrors, 1) }
func (c *Counters) AddEventsEmitted(n int64) { atomic.AddInt64(&c.EventsEmitted, n) }
func (c *Counters) AddEventsSkipped(n int64) { atomic.AddInt64(&c.EventsSkipped, n) }
func (c *Counters) AddScriptError()          { atomic.AddInt64(&c.ScriptErrors, 1) }

func (c *Counters) snapshot() Counters {
	return Counters{
		LinesRead:     atomic.LoadInt64(&c.LinesRead),
		EventsParsed:  atomic.LoadInt64(&c.EventsParsed),
		ParseErrors:   atomic.LoadInt64(&c.ParseErrors),
		EventsEmitted: atomic.LoadInt64(&c.EventsEmitted),
		EventsSkipped: atomic.LoadInt64(&c.EventsSkipped),
		ScriptErrors:  atomic.LoadInt64(&c.ScriptErrors),
	}
}

// ResourceSample is one point-in-time reading of process resource usage,
// modeled on EnhancedMetrics.UpdateSystemMetrics's memory/CPU sampling.
type ResourceSample struct {
	HeapAllocBytes uint64
	HeapSysBytes   uint64
	Goroutines     int
	NumGC          uint32
	LastGCPauseNs  uint64
	CPUPercent     float64
}

// Collector accumulates run counters and parse-error samples across the
// lifetime of a run and renders them as the stderr summary or the
// --metrics-file JSON body.
type Collector struct {
	Counters

	strict    bool
	startedAt time.Time

	parseErrorSamples []*parser.ParseError
	maxParseSamples   int

	lastCPU      cpu.TimesStat
	lastCPUCheck time.Time
	haveCPU      bool
}

func NewCollector(strict bool) *Collector {
	return &Collector{
		strict:          strict,
		startedAt:       time.Now(),
		maxParseSamples: 20,
	}
}

// RecordParseError appends pe to the bounded sample list kept for the
// summary (spec.md §6.3 "stderr carries diagnostics: parse-error
// summaries"). Older samples are kept; the list is capped, not a ring,
// since the first failures are usually the most diagnostic.
func (c *Collector) RecordParseError(pe *parser.ParseError) {
	c.AddParseError()
	if len(c.parseErrorSamples) < c.maxParseSamples {
		c.parseErrorSamples = append(c.parseErrorSamples, pe)
	}
}

// SampleResources takes one CPU/memory reading, mirroring
// EnhancedMetrics.UpdateSystemMetrics's delta-based CPU percentage
// calculation between successive calls.
func (c *Collector) SampleResources() ResourceSample {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sample := ResourceSample{
		HeapAllocBytes: m.HeapAlloc,
		HeapSysBytes:   m.HeapSys,
		Goroutines:     runtime.NumGoroutine(),
		NumGC:          m.NumGC,
	}
	if m.NumGC > 0 {
		sample.LastGCPauseNs = m.PauseNs[(m.NumGC+255)%256]
	}

	times, err := cpu.Times(false)
	if err == nil && len(times) > 0 {
		if c.haveCPU {
			total := times[0].Total() - c.lastCPU.Total()
			idle := times[0].Idle - c.lastCPU.Idle
			if total > 0 {
				sample.CPUPercent = 100.0 * (total - idle) / total
			}
		}
		c.lastCPU = times[0]
		c.lastCPUCheck = time.Now()
		c.haveCPU = true
	}
	return sample
}

// Summary is the JSON-serializable snapshot written to --metrics-file
// and rendered to stderr; both share this shape (spec.md §6.3 "Metrics
// may additionally be written to a file (JSON object with the same keys
// as the stderr summary)").
type Summary struct {
	DurationSeconds float64                `json:"duration_seconds"`
	Strict          bool                   `json:"strict"`
	LinesRead       int64                  `json:"lines_read"`
	EventsParsed    int64                  `json:"events_parsed"`
	ParseErrors     int64                  `json:"parse_errors"`
	EventsEmitted   int64                  `json:"events_emitted"`
	EventsSkipped   int64                  `json:"events_skipped"`
	ScriptErrors    int64                  `json:"script_errors"`
	Resources       ResourceSample         `json:"resources"`
	Tracker         map[string]interface{} `json:"tracker,omitempty"`
}

// Build assembles the final Summary from the collector's counters, a
// fresh resource sample, and the merged tracker's rendered key/value
// pairs (nil tr omits the "tracker" section entirely).
func (c *Collector) Build(tr *tracker.Tracker) Summary {
	snap := c.Counters.snapshot()
	s := Summary{
		DurationSeconds: time.Since(c.startedAt).Seconds(),
		Strict:          c.strict,
		LinesRead:       snap.LinesRead,
		EventsParsed:    snap.EventsParsed,
		ParseErrors:     snap.ParseErrors,
		EventsEmitted:   snap.EventsEmitted,
		EventsSkipped:   snap.EventsSkipped,
		ScriptErrors:    snap.ScriptErrors,
		Resources:       c.SampleResources(),
	}
	if tr != nil {
		s.Tracker = RenderTracker(tr)
	}
	return s
}

// RenderTracker flattens a Tracker's bound keys into a JSON-friendly map,
// one entry per key (spec.md §4.4 "tracked values survive to end-of-run
// reporting"). The result is a plain Go map and keeps no key order;
// WriteSummary sorts the keys alphabetically when rendering them.
func RenderTracker(tr *tracker.Tracker) map[string]interface{} {
	out := make(map[string]interface{})
	for _, k := range tr.Keys() {
		v, ok := tr.Get(k)
		if !ok {
			continue
		}
		out[k] = renderValue(v)
	}
	return out
}

func renderValue(v *tracker.Value) interface{} {
	switch v.Op {
	case tracker.OpCount:
		return v.Count
	case tracker.OpSum:
		if v.SumIsInt {
			return v.IntSum
		}
		return v.Sum
	case tracker.OpMin:
		if v.MinIsInt {
			return v.IntMin
		}
		return v.Min
	case tracker.OpMax:
		if v.MaxIsInt {
			return v.IntMax
		}
		return v.Max
	case tracker.OpAvg:
		return v.AvgResult()
	case tracker.OpUnique:
		return map[string]interface{}{"count": len(v.UniqueSet), "sample": v.UniqueSample}
	case tracker.OpBucket:
		return v.Bucket
	case tracker.OpTopN, tracker.OpBottomN:
		return v.N
	case tracker.OpList:
		out := make([]string, len(v.List))
		for i, fv := range v.List {
			out[i] = fv.ToString()
		}
		return out
	case tracker.OpErrSample:
		return v.ErrorSamples
	case tracker.OpPercentile:
		return map[string]float64{"p50": v.PercentileResult(0.5), "p90": v.PercentileResult(0.9), "p99": v.PercentileResult(0.99)}
	default:
		return nil
	}
}

// sectionEmoji is the default prefix for stderr section headers (spec.md
// §6.3 "section headers (prefixed with a configurable emoji;
// suppressible)").
const sectionEmoji = "▸" // ▸

// WriteSummary renders s to w as the stderr diagnostics block. When
// headers is false the "section headers" are omitted (--no-section-headers).
func WriteSummary(w io.Writer, s Summary, headers bool) error {
	header := func(title string) {
		if headers {
			fmt.Fprintf(w, "%s %s\n", sectionEmoji, title)
		}
	}

	header("run")
	fmt.Fprintf(w, "  duration: %.3fs  strict: %v\n", s.DurationSeconds, s.Strict)
	fmt.Fprintf(w, "  lines_read: %d  events_parsed: %d  parse_errors: %d\n", s.LinesRead, s.EventsParsed, s.ParseErrors)
	fmt.Fprintf(w, "  events_emitted: %d  events_skipped: %d  script_errors: %d\n", s.EventsEmitted, s.EventsSkipped, s.ScriptErrors)

	header("resources")
	r := s.Resources
	fmt.Fprintf(w, "  heap_alloc: %d bytes  goroutines: %d  gc_runs: %d  cpu: %.1f%%\n", r.HeapAllocBytes, r.Goroutines, r.NumGC, r.CPUPercent)

	if len(s.Tracker) > 0 {
		header("tracked values")
		keys := make([]string, 0, len(s.Tracker))
		for k := range s.Tracker {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, s.Tracker[k])
		}
	}
	return nil
}

// WriteMetricsFile writes s as a JSON object to path (spec.md §6.3).
func WriteMetricsFile(path string, s Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
