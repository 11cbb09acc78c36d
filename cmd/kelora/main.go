// Command kelora is the thin wiring entrypoint: it resolves a handful of
// flags into a pipelineconfig.Config, builds the scripting engine, parser,
// sources, and sink from it, then hands everything to the sequential or
// parallel scheduler. The CLI argument parser (a full flag/alias/config-file
// layer) is explicitly out of scope — this only covers the flags needed to
// drive every module wired in internal/pipelineconfig.
//
// Grounded on the teacher's cmd/main.go: parse a minimal flag set, build a
// logger, construct and run one top-level object, translate its error into
// a process exit code.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"kelora/internal/apperrors"
	"kelora/internal/diag"
	"kelora/internal/lifecycle"
	"kelora/internal/parser"
	"kelora/internal/pipelineconfig"
	"kelora/internal/scheduler"
	"kelora/internal/source"
	"kelora/internal/stage"
	"kelora/internal/tracker"
)

// stringList accumulates repeated occurrences of a flag (e.g. multiple
// --exec expressions), mirroring the teacher's flag.Var usage for
// multi-value CLI knobs.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	c := pipelineconfig.Defaults()

	var (
		exec          stringList
		keys          stringList
		levels        stringList
		noDecompress  bool
		follow        bool
		sinceStr      string
		untilStr      string
		spanStr       string
		spanIdleStr   string
		logLevel      string
		logJSON       bool
		dumpConfig    bool
	)

	flag.StringVar(&c.Format, "format", c.Format, "input format (auto, json, logfmt, line, raw, csv, tsv, combined, apache, cef, syslog)")
	flag.BoolVar(&c.HasHeader, "has-header", false, "csv/tsv input has a header row")
	flag.StringVar(&c.SyslogVariant, "syslog-variant", "", "syslog dialect (rfc3164, rfc5424)")

	flag.StringVar(&c.Filter, "filter", "", "filter expression")
	flag.Var(&exec, "exec", "exec expression (repeatable)")
	flag.StringVar(&c.Begin, "begin", "", "run-start expression binding conf")
	flag.StringVar(&c.End, "end", "", "run-end expression seeing conf and metrics")
	flag.IntVar(&c.WindowSize, "window", 0, "sliding window size")
	flag.StringVar(&spanStr, "span", "", "tumbling span boundary: count (N), duration (1m), or field name")
	flag.StringVar(&spanIdleStr, "span-idle", "", "tumbling span boundary: idle duration")
	flag.StringVar(&c.SpanClose, "span-close", "", "span-close expression")
	flag.Var(&levels, "levels", "allowed levels (repeatable or comma-separated)")
	flag.StringVar(&sinceStr, "since", "", "RFC3339 lower timestamp bound")
	flag.StringVar(&untilStr, "until", "", "RFC3339 upper timestamp bound")
	flag.IntVar(&c.Head, "head", 0, "truncate input after N parsed events")
	flag.IntVar(&c.Take, "take", 0, "truncate output after N emitted events")
	flag.IntVar(&c.ContextBefore, "B", 0, "lines of context before a match")
	flag.IntVar(&c.ContextAfter, "A", 0, "lines of context after a match")
	contextBoth := flag.Int("C", 0, "lines of context before and after a match")

	flag.IntVar(&c.Parallel, "parallel", c.Parallel, "worker count (1 runs sequentially)")
	flag.BoolVar(&c.Unordered, "unordered", false, "skip output reordering in parallel mode")
	flag.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "records per batch")
	flag.IntVar(&c.BatchTimeoutMS, "batch-timeout", c.BatchTimeoutMS, "batch idle flush timeout in ms")

	flag.BoolVar(&c.Strict, "strict", false, "promote recoverable errors to fatal")
	quiet := flag.Int("q", 0, "quiet level (stackable)")
	verbose := flag.Int("v", 0, "verbose level (stackable)")
	flag.BoolVar(&c.Stats, "stats", false, "print end-of-run summary to stderr")
	flag.StringVar(&c.MetricsAddr, "metrics", "", "bind address for the Prometheus/stats HTTP endpoint")
	flag.StringVar(&c.MetricsFile, "metrics-file", "", "write end-of-run summary JSON to this path")
	flag.BoolVar(&c.NoSectionHeaders, "no-section-headers", false, "omit section headers from the stderr summary")
	flag.StringVar(&c.TraceSelector, "trace", "", "stage trace selector (comma list or *)")

	flag.BoolVar(&c.Hardened, "hardened", false, "enable default script resource limits")
	flag.BoolVar(&c.SandboxOn, "sandbox", false, "enable the script sandbox")
	flag.BoolVar(&c.AllowIO, "allow-rhai-io", false, "re-enable filesystem access under --sandbox")
	flag.BoolVar(&c.ScriptUnlimited, "script-unlimited", false, "disable all script resource limits")
	scriptTimeout := flag.Duration("script-timeout", c.ScriptTimeout, "per-call script wall-time limit")
	flag.StringVar(&c.Secret, "secret", os.Getenv("KELORA_SECRET"), "process secret for anonymize and pseudonym (also read from KELORA_SECRET)")

	flag.StringVar(&c.OutputFormat, "output", c.OutputFormat, "output format (text, json, logfmt, csv, tsv)")
	flag.Var(&keys, "keys", "explicit output key list (repeatable or comma-separated)")
	flag.BoolVar(&c.Core, "core", false, "restrict output to ts/level/msg")
	var excludeKeys stringList
	flag.Var(&excludeKeys, "exclude-keys", "keys to drop from output (repeatable or comma-separated)")
	flag.BoolVar(&c.Color, "color", false, "colorize text output")
	flag.BoolVar(&c.Emoji, "emoji", false, "prefix levels with an emoji in text output")
	flag.BoolVar(&c.TimestampLocal, "z", false, "render timestamps in local time")
	flag.BoolVar(&c.TimestampUTC, "Z", false, "render timestamps in UTC")

	flag.BoolVar(&noDecompress, "no-decompress", false, "treat gzip-looking input as raw text")
	flag.BoolVar(&follow, "follow", false, "follow input files for appended lines (tail -f)")
	flag.StringVar(&logLevel, "log-level", "info", "process log level")
	flag.BoolVar(&logJSON, "log-json", false, "emit process logs as JSON")
	flag.BoolVar(&dumpConfig, "dump-config", false, "print the fully resolved configuration as YAML and exit")

	flag.Parse()

	c.Quiet = *quiet
	c.Verbose = *verbose
	if *contextBoth > 0 {
		c.ContextBefore = *contextBoth
		c.ContextAfter = *contextBoth
	}
	c.Exec = exec
	c.Keys = splitCommaAll(keys)
	c.ExcludeKeys = splitCommaAll(excludeKeys)
	c.Levels = splitCommaAll(levels)

	logger := logrus.New()
	logger.SetLevel(resolveLogLevel(logLevel, c.Quiet, c.Verbose))
	if logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	if spanStr != "" || spanIdleStr != "" {
		c.Span = parseSpanFlag(spanStr, spanIdleStr)
	}
	if sinceStr != "" {
		t, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kelora: invalid --since: %v\n", err)
			return 2
		}
		c.Since = t
	}
	if untilStr != "" {
		t, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kelora: invalid --until: %v\n", err)
			return 2
		}
		c.Until = t
	}
	c.ScriptTimeout = *scriptTimeout

	if err := c.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
		return 2
	}

	if dumpConfig {
		out, err := pipelineconfig.DumpYAML(c)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
			return 1
		}
		os.Stdout.Write(out)
		return 0
	}

	return runPipeline(c, flag.Args(), noDecompress, follow, logger)
}

// parseSpanFlag resolves --span's polymorphic value (an integer count, a
// Go duration, or a bare field name) plus --span-idle into one
// pipelineconfig.SpanModeConfig, matching spec.md §6.1's single "--span
// <N|DURATION|FIELD>" flag shape.
func parseSpanFlag(span, idle string) pipelineconfig.SpanModeConfig {
	if idle != "" {
		d, err := time.ParseDuration(idle)
		if err != nil {
			return pipelineconfig.SpanModeConfig{Mode: "idle"}
		}
		return pipelineconfig.SpanModeConfig{Mode: "idle", Dur: d}
	}
	if n, err := strconv.Atoi(span); err == nil {
		return pipelineconfig.SpanModeConfig{Mode: "count", Count: n}
	}
	if d, err := time.ParseDuration(span); err == nil {
		return pipelineconfig.SpanModeConfig{Mode: "time", Dur: d}
	}
	return pipelineconfig.SpanModeConfig{Mode: "field", Field: span}
}

// resolveLogLevel turns --log-level plus stacked -q/-v counts into one
// logrus.Level: each -v steps one level more verbose (info → debug →
// trace), each -q one level quieter (info → warn → error), independent
// of which direction the base --log-level already points.
func resolveLogLevel(base string, quiet, verbose int) logrus.Level {
	lvl, err := logrus.ParseLevel(base)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	step := int(lvl) + verbose - quiet
	if step < int(logrus.PanicLevel) {
		step = int(logrus.PanicLevel)
	}
	if step > int(logrus.TraceLevel) {
		step = int(logrus.TraceLevel)
	}
	return logrus.Level(step)
}

func splitCommaAll(vals stringList) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func runPipeline(c pipelineconfig.Config, files []string, noDecompress, follow bool, logger *logrus.Logger) int {
	src, err := buildSource(files, noDecompress, follow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
		return 1
	}
	src.Start()
	defer src.Stop()

	p, err := pipelineconfig.BuildParser(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
		return 2
	}

	baseEng, err := pipelineconfig.NewBaseEngine(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
		return 1
	}

	conf, err := pipelineconfig.RunBegin(baseEng, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
		return 1
	}

	sinkImpl := pipelineconfig.BuildSink(c, os.Stdout)

	collector := diag.NewCollector(c.Strict)

	var tracer *diag.Tracer
	selector := diag.ParseTraceSelector(c.TraceSelector)
	if selector.Enabled() {
		t, terr := diag.NewTracer(selector, diag.DefaultTracerConfig())
		if terr != nil {
			fmt.Fprintf(os.Stderr, "kelora: %v\n", terr)
			return 1
		}
		tracer = t
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shCancel()
			_ = tracer.Shutdown(shCtx)
		}()
	}
	var pipelineTracer stage.Tracer
	if tracer != nil {
		pipelineTracer = tracer
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := lifecycle.New(logger)
	controller.Watch(ctx)
	go func() {
		for sig := range controller.Ctrl() {
			cancel()
			if sig.Kind == lifecycle.ShutdownImmediate {
				os.Exit(130)
			}
		}
	}()

	var limitOnce, takeOnce sync.Once
	onHeadLimit := func() { limitOnce.Do(cancel) }
	onTakeLimit := func() { takeOnce.Do(cancel) }

	factory := pipelineconfig.Factory(c, conf, sinkImpl, pipelineTracer, onHeadLimit, onTakeLimit)

	var liveTracker atomic.Pointer[tracker.Tracker]

	var diagServer *diag.Server
	if c.MetricsAddr != "" {
		diagServer = diag.NewServer(c.MetricsAddr, collector, liveTracker.Load, logger)
		diagServer.Start()
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shCancel()
			_ = diagServer.Shutdown(shCtx)
		}()
	}

	onParseError := func(pe *parser.ParseError) { collector.RecordParseError(pe) }

	var mergedTracker *tracker.Tracker
	var runErr error

	forceSequential := c.Parallel > 1 && c.Span.Enabled()
	if forceSequential {
		fmt.Fprintf(os.Stderr, "kelora: --span requires tumbling over the whole event sequence; ignoring --parallel %d and running sequentially\n", c.Parallel)
	}

	if c.Parallel <= 1 || forceSequential {
		tr := tracker.New(c.Strict)
		baseEng.SetTracker(tr)
		pipeline, ferr := factory(baseEng, tr)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "kelora: %v\n", ferr)
			return 1
		}
		liveTracker.Store(tr) // sequential mode has one tracker for the whole run, so /stats can poll it live
		chunker := scheduler.NewChunker(c.Multiline)
		seq := scheduler.NewSequential(src, chunker, p, pipeline, c.Strict, onParseError)
		runErr = seq.Run(ctx)
		mergedTracker = tr
	} else {
		pcfg := scheduler.ParallelConfig{
			Workers:   c.Parallel,
			Unordered: c.Unordered,
			Batch:     scheduler.BatchConfig{Size: c.BatchSize, Timeout: time.Duration(c.BatchTimeoutMS) * time.Millisecond},
		}
		chunker := scheduler.NewChunker(c.Multiline)
		par := scheduler.NewParallel(pcfg, src, chunker, p, baseEng, factory, sinkImpl, c.Strict, onParseError)
		runErr = par.Run(ctx)
		// Parallel mode merges each worker's tracker only once Run returns
		// (internal/scheduler.Parallel.MergedTracker), so liveTracker stays
		// unset and /stats reports nothing live until the run completes.
		mergedTracker = par.MergedTracker()
		liveTracker.Store(mergedTracker)
	}

	if runErr != nil && runErr != context.Canceled {
		if ae, ok := apperrors.As(runErr); ok && ae.IsFatal() {
			fmt.Fprintf(os.Stderr, "kelora: %v\n", ae)
			return 1
		}
		fmt.Fprintf(os.Stderr, "kelora: %v\n", runErr)
		return 1
	}

	if err := pipelineconfig.RunEnd(baseEng, c, conf, pipelineconfig.MetricsSnapshot(mergedTracker)); err != nil {
		fmt.Fprintf(os.Stderr, "kelora: %v\n", err)
		return 1
	}

	summary := collector.Build(mergedTracker)
	if c.Stats {
		_ = diag.WriteSummary(os.Stderr, summary, !c.NoSectionHeaders)
	}
	if c.MetricsFile != "" {
		if err := diag.WriteMetricsFile(c.MetricsFile, summary); err != nil {
			fmt.Fprintf(os.Stderr, "kelora: failed writing --metrics-file: %v\n", err)
		}
	}

	if controller.ExitCode() != 0 {
		return controller.ExitCode()
	}
	return 0
}

// buildSource resolves the positional file arguments into a source.Multi:
// stdin when none are given, a follower for a single file under --follow,
// and a static reader per file otherwise. Everything goes through Multi,
// even a single source, so runPipeline has one Start/Stop lifecycle to
// manage regardless of how many inputs were given.
func buildSource(files []string, noDecompress, follow bool) (*source.Multi, error) {
	if len(files) == 0 {
		return source.NewMulti(source.NewStdin(noDecompress)), nil
	}
	if len(files) == 1 && follow {
		f, err := source.NewFollowFile(files[0], true)
		if err != nil {
			return nil, err
		}
		return source.NewMulti(f), nil
	}

	runners := make([]source.Runner, len(files))
	for i, f := range files {
		runners[i] = source.NewStaticFile(f, noDecompress)
	}
	return source.NewMulti(runners...), nil
}
