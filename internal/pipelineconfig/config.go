// Package pipelineconfig resolves the CLI-surface config named in
// spec.md §6.1 into a single yaml-tagged Config, then assembles it into
// the engine/pipeline machinery internal/scheduler needs to run: a base
// script.Engine carrying every helper factory, a ScopeFunc binding
// conf/metrics, and a scheduler.PipelineFactory that compiles Filter →
// Exec → Window → Span → Context → Head → LevelRange/TimeRange → Take →
// Emit against each worker's cloned Engine.
//
// Grounded on the teacher's internal/config package: Config is a single
// resolved struct (types.Config) loaded once, and ValidateConfig
// (config.go) runs a battery of per-concern sub-validators that
// accumulate errors rather than failing on the first one. cmd/kelora's
// full flag parser and any on-disk config/alias file are explicitly out
// of scope (spec.md's "CLI argument parser and config-file loader" is a
// Non-goal); this package only owns the resolved shape and what it
// compiles into.
package pipelineconfig

import (
	"fmt"
	"strings"
	"time"

	"kelora/internal/apperrors"
	"kelora/internal/parser"
	"kelora/internal/scheduler"
	"kelora/internal/script"
)

// SpanModeConfig names which of the four tumbling-span boundary rules
// (spec.md §4.4.4) --span resolves to, plus the operand each rule needs.
type SpanModeConfig struct {
	Mode  string `yaml:"mode"`  // "", "count", "time", "field", "idle"
	Count int    `yaml:"count"`
	Dur   time.Duration `yaml:"duration"`
	Field string `yaml:"field"`
}

func (s SpanModeConfig) enabled() bool { return s.Mode != "" }

// Enabled reports whether --span was configured at all, exported so
// callers outside this package (cmd/kelora's scheduler dispatch) can
// decide whether spans are in play without reaching into Mode directly.
func (s SpanModeConfig) Enabled() bool { return s.enabled() }

// Config is the fully resolved pipeline configuration: every concern
// named in spec.md §6.1 that bears on what gets compiled and how events
// flow through it, independent of how a caller arrived at these values
// (flags, an alias file, or, here, direct construction).
type Config struct {
	// Input
	Format        string              `yaml:"format"`
	HasHeader     bool                `yaml:"has_header"`
	ColumnTypes   map[string]parser.ColumnType `yaml:"column_types"`
	SyslogVariant string              `yaml:"syslog_variant"`
	Multiline     scheduler.MultilineConfig `yaml:"-"`

	// Filtering/transform
	Filter       string        `yaml:"filter"`
	Exec         []string      `yaml:"exec"`
	Begin        string        `yaml:"begin"`
	End          string        `yaml:"end"`
	WindowSize   int           `yaml:"window"`
	Span         SpanModeConfig `yaml:"span"`
	SpanClose    string        `yaml:"span_close"`
	Levels       []string      `yaml:"levels"`
	Since        time.Time     `yaml:"-"`
	Until        time.Time     `yaml:"-"`
	Head         int           `yaml:"head"`
	Take         int           `yaml:"take"`
	ContextBefore int          `yaml:"context_before"`
	ContextAfter  int          `yaml:"context_after"`

	// Concurrency (spec.md §6.1 "--parallel [N]", "--unordered",
	// "--batch-size", "--batch-timeout")
	Parallel  int  `yaml:"parallel"`
	Unordered bool `yaml:"unordered"`
	BatchSize int  `yaml:"batch_size"`
	BatchTimeoutMS int `yaml:"batch_timeout_ms"`

	// Error policy & diagnostics
	Strict      bool `yaml:"strict"`
	Quiet       int  `yaml:"quiet"`
	Verbose     int  `yaml:"verbose"`
	Stats       bool `yaml:"stats"`
	MetricsAddr string `yaml:"metrics_addr"`
	MetricsFile string `yaml:"metrics_file"`
	NoSectionHeaders bool `yaml:"no_section_headers"`
	TraceSelector string `yaml:"trace_selector"`

	// Hardening (spec.md §6.1 "--hardened", "--sandbox",
	// "--allow-rhai-io", "--script-unlimited", "--script-timeout")
	Hardened     bool          `yaml:"hardened"`
	SandboxOn    bool          `yaml:"sandbox"`
	AllowIO      bool          `yaml:"allow_rhai_io"`
	ScriptUnlimited bool       `yaml:"script_unlimited"`
	ScriptTimeout   time.Duration `yaml:"script_timeout"`
	ScriptMaxOperations uint64 `yaml:"script_max_operations"`
	ScriptMaxCallDepth  int    `yaml:"script_max_call_depth"`
	ScriptMaxStringLen  int    `yaml:"script_max_string_len"`
	ScriptMaxArrayLen   int    `yaml:"script_max_array_len"`
	ScriptMaxMapLen     int    `yaml:"script_max_map_len"`
	Secret string `yaml:"-"` // never serialized; --secret / env var only

	// Output (spec.md §6.1 "formatter selector ... key projection ...
	// color/emoji toggles, timestamp display flags")
	OutputFormat  string            `yaml:"output_format"` // "text" (default), "json", "logfmt", "csv", "tsv"
	Keys          []string          `yaml:"keys"`
	Core          bool              `yaml:"core"`
	ExcludeKeys   []string          `yaml:"exclude_keys"`
	Color         bool              `yaml:"color"`
	Emoji         bool              `yaml:"emoji"`
	TimestampUTC  bool              `yaml:"timestamp_utc"`   // -Z
	TimestampLocal bool             `yaml:"timestamp_local"` // -z
	FormatTS      map[string]string `yaml:"format_ts"`       // per-field time.Format layouts
}

// Defaults returns a Config with every knob at the value spec.md §6.1
// documents as the out-of-the-box behavior: text output, sequential
// scheduling, resilient (non-strict) error policy, hardening off.
func Defaults() Config {
	batch := scheduler.DefaultBatchConfig()
	return Config{
		Format:         "auto",
		WindowSize:     0,
		BatchSize:      batch.Size,
		BatchTimeoutMS: int(batch.Timeout / time.Millisecond),
		Parallel:       1,
		ScriptTimeout:  2 * time.Second,
		OutputFormat:   "text",
	}
}

// Validate runs every sub-validator and accumulates their failures into
// one multi-line CONFIG_INVALID AppError (grounded on the teacher's
// ConfigValidator.Validate/addError/buildValidationError), rather than
// stopping at the first bad flag combination.
func (c Config) Validate() error {
	var problems []string

	problems = append(problems, validateConcurrency(c)...)
	problems = append(problems, validateSpanAndWindow(c)...)
	problems = append(problems, validateContext(c)...)
	problems = append(problems, validateHeadTake(c)...)
	problems = append(problems, validateHardening(c)...)
	problems = append(problems, validateLevels(c)...)
	problems = append(problems, validateOutput(c)...)

	if len(problems) == 0 {
		return nil
	}
	return apperrors.New(apperrors.Fatal, apperrors.CodeConfigInvalid, "pipelineconfig", "validate",
		strings.Join(problems, "; "))
}

func validateConcurrency(c Config) []string {
	var out []string
	if c.Parallel < 1 {
		out = append(out, "parallel must be >= 1")
	}
	if c.BatchSize < 1 {
		out = append(out, "batch_size must be >= 1")
	}
	if c.BatchTimeoutMS < 0 {
		out = append(out, "batch_timeout_ms must be >= 0")
	}
	return out
}

func validateSpanAndWindow(c Config) []string {
	var out []string
	if c.WindowSize < 0 {
		out = append(out, "window must be >= 0")
	}
	if c.Span.enabled() {
		switch c.Span.Mode {
		case "count":
			if c.Span.Count < 1 {
				out = append(out, "span count mode requires count >= 1")
			}
		case "time", "idle":
			if c.Span.Dur <= 0 {
				out = append(out, fmt.Sprintf("span %s mode requires a positive duration", c.Span.Mode))
			}
		case "field":
			if c.Span.Field == "" {
				out = append(out, "span field mode requires a field name")
			}
		default:
			out = append(out, fmt.Sprintf("unknown span mode %q", c.Span.Mode))
		}
		if c.SpanClose == "" {
			out = append(out, "span requires --span-close")
		}
	}
	return out
}

// validateContext enforces spec.md §4.4.5's precondition that -A/-B/-C
// context mode needs an active match predicate to anchor on.
func validateContext(c Config) []string {
	var out []string
	if (c.ContextBefore > 0 || c.ContextAfter > 0) && c.Filter == "" {
		out = append(out, "context (-A/-B/-C) requires --filter to define the match predicate")
	}
	return out
}

func validateHeadTake(c Config) []string {
	var out []string
	if c.Head < 0 {
		out = append(out, "head must be >= 0")
	}
	if c.Take < 0 {
		out = append(out, "take must be >= 0")
	}
	return out
}

func validateHardening(c Config) []string {
	var out []string
	if c.Hardened && c.ScriptUnlimited {
		out = append(out, "hardened and script_unlimited are mutually exclusive")
	}
	if c.AllowIO && !c.SandboxOn {
		out = append(out, "allow_rhai_io only has meaning when sandbox is enabled")
	}
	return out
}

func validateLevels(c Config) []string {
	var out []string
	for _, l := range c.Levels {
		if parseLevelStrict(l) < 0 {
			out = append(out, fmt.Sprintf("unknown level %q", l))
		}
	}
	return out
}

var validOutputFormats = map[string]bool{
	"": true, "text": true, "json": true, "logfmt": true, "csv": true, "tsv": true,
}

func validateOutput(c Config) []string {
	var out []string
	if !validOutputFormats[c.OutputFormat] {
		out = append(out, fmt.Sprintf("unknown output format %q", c.OutputFormat))
	}
	if c.TimestampUTC && c.TimestampLocal {
		out = append(out, "-z and -Z are mutually exclusive")
	}
	return out
}

// scriptLimits derives script.Limits from the hardening knobs, applying
// DefaultLimits as the --hardened preset and individual --script-max-*
// overrides on top of it (spec.md §6.1).
func (c Config) scriptLimits() script.Limits {
	if c.ScriptUnlimited {
		return script.Limits{}
	}
	limits := script.DefaultLimits()
	if !c.Hardened {
		limits.Enabled = false
	}
	if c.ScriptTimeout > 0 {
		limits.MaxWallTime = c.ScriptTimeout
	}
	if c.ScriptMaxOperations > 0 {
		limits.MaxOperations = c.ScriptMaxOperations
	}
	if c.ScriptMaxCallDepth > 0 {
		limits.MaxCallDepth = c.ScriptMaxCallDepth
	}
	if c.ScriptMaxStringLen > 0 {
		limits.MaxStringLen = c.ScriptMaxStringLen
	}
	if c.ScriptMaxArrayLen > 0 {
		limits.MaxArrayLen = c.ScriptMaxArrayLen
	}
	if c.ScriptMaxMapLen > 0 {
		limits.MaxMapLen = c.ScriptMaxMapLen
	}
	return limits
}

func (c Config) sandbox() script.Sandbox {
	return script.Sandbox{Enabled: c.SandboxOn, AllowIO: c.AllowIO}
}
