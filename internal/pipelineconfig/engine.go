package pipelineconfig

import (
	"strings"

	"kelora/internal/event"
	"kelora/internal/script"
	"kelora/internal/script/helpers/collections"
	"kelora/internal/script/helpers/datetimex"
	"kelora/internal/script/helpers/emith"
	"kelora/internal/script/helpers/hashing"
	"kelora/internal/script/helpers/network"
	"kelora/internal/script/helpers/patterns"
	"kelora/internal/script/helpers/stdext"
	"kelora/internal/script/helpers/tracking"
	"kelora/internal/script/helpers/windowh"
	"kelora/internal/tracker"
)

// NewBaseEngine builds the one Engine every worker's Engine is Clone()'d
// from: every helper sub-package registered (spec.md §4.3's full
// function surface), hardening limits and sandbox resolved from c.
func NewBaseEngine(c Config) (*script.Engine, error) {
	return script.NewEngine(c.scriptLimits(), c.sandbox(),
		collections.Factory(),
		datetimex.Factory(),
		emith.Factory(),
		hashing.Factory(hashing.Secrets{Secret: c.Secret}),
		network.Factory(),
		patterns.Factory(),
		stdext.Factory(),
		tracking.Factory(),
		windowh.Factory(),
	)
}

// levelSet resolves c.Levels (spec.md §6.1 "--levels") into the
// event.Level set stage.LevelRangeStage needs, or nil if --levels was
// not given (no level filtering).
func levelSet(c Config) []event.Level {
	if len(c.Levels) == 0 {
		return nil
	}
	out := make([]event.Level, 0, len(c.Levels))
	for _, name := range c.Levels {
		out = append(out, event.ParseLevel(name))
	}
	return out
}

var validLevelNames = map[string]struct{}{
	"trace": {}, "trc": {},
	"debug": {}, "dbg": {},
	"info": {}, "information": {}, "notice": {},
	"warn": {}, "warning": {}, "wrn": {},
	"error": {}, "err": {}, "severe": {},
	"fatal": {}, "panic": {}, "critical": {}, "crit": {},
}

// parseLevelStrict reports whether name is a recognized level spelling,
// returning -1 when it is not (event.ParseLevel alone can't distinguish
// an unrecognized spelling from the literal string "unknown").
func parseLevelStrict(name string) int {
	if _, ok := validLevelNames[strings.ToLower(strings.TrimSpace(name))]; !ok {
		return -1
	}
	return int(event.ParseLevel(name))
}

// confBinding freezes a --begin result into the conf scope variable
// (spec.md §4.3 "deep-frozen user config from --begin"). FieldValue's
// own immutable-by-construction representation (Clone/Equal operate on
// value copies, not references into a live map) is what makes this
// "freeze" free: conf is just the FieldValue RunBegin produced, handed
// to every subsequent scope unchanged.
type confBinding struct {
	value event.FieldValue
}

func newConfBinding() *confBinding { return &confBinding{value: event.Map(event.NewOrderedMap())} }

func (b *confBinding) set(v event.FieldValue) { b.value = v }

// scopeBuilder closes over the per-worker Engine's tracker and the
// frozen conf binding to produce stage.ScopeFunc values for every stage
// that needs one. metrics is read fresh off the tracker on every call
// (spec.md §4.3 "metrics (read-only cumulative tracker snapshot)"),
// since --exec stages upstream of a --filter can mutate it between
// events via track_* helpers.
type scopeBuilder struct {
	conf *confBinding
	tr   *tracker.Tracker
}

func newScopeBuilder(conf *confBinding, tr *tracker.Tracker) *scopeBuilder {
	return &scopeBuilder{conf: conf, tr: tr}
}

func (b *scopeBuilder) scope(ev *event.Event) script.Scope {
	return script.Scope{
		Event:   ev,
		Conf:    b.conf.value,
		Metrics: snapshotToFieldValue(b.tr.Snapshot()),
	}
}

// MetricsSnapshot renders tr's cumulative snapshot as the FieldValue
// RunEnd's --end expression sees bound to metrics — the same conversion
// scopeBuilder.scope applies per-event, exposed here since cmd/kelora
// builds the end-of-run scope itself rather than through a ScopeFunc.
func MetricsSnapshot(tr *tracker.Tracker) event.FieldValue {
	return snapshotToFieldValue(tr.Snapshot())
}

func snapshotToFieldValue(s tracker.Snapshot) event.FieldValue {
	m := event.NewOrderedMap()
	for k, v := range s {
		m.Set(k, v)
	}
	return event.Map(m)
}
