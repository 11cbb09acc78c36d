// Package datetimex registers the datetime helper contract of spec.md
// §4.3: parse with format autodetect, arithmetic, timezone conversion,
// and floor_to/ceil_to/round_to, all delegating to internal/event's own
// timestamp parser so scripts and parsers agree on format autodetection.
package datetimex

import (
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"kelora/internal/event"
	"kelora/internal/script"
)

func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			cel.Function("parse_time",
				cel.Overload("parse_time_string", []*cel.Type{cel.StringType}, cel.TimestampType,
					cel.UnaryBinding(parseTimeFn(""))),
				cel.Overload("parse_time_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.TimestampType,
					cel.BinaryBinding(parseTimeWithFormat))),
			cel.Function("format_time",
				cel.Overload("format_time_timestamp_string", []*cel.Type{cel.TimestampType, cel.StringType}, cel.StringType,
					cel.BinaryBinding(formatTimeFn))),
			cel.Function("tz_convert",
				cel.Overload("tz_convert_timestamp_string", []*cel.Type{cel.TimestampType, cel.StringType}, cel.TimestampType,
					cel.BinaryBinding(tzConvertFn))),
			cel.Function("floor_to",
				cel.Overload("floor_to_timestamp_string", []*cel.Type{cel.TimestampType, cel.StringType}, cel.TimestampType,
					cel.BinaryBinding(roundingFn(floorTo)))),
			cel.Function("ceil_to",
				cel.Overload("ceil_to_timestamp_string", []*cel.Type{cel.TimestampType, cel.StringType}, cel.TimestampType,
					cel.BinaryBinding(roundingFn(ceilTo)))),
			cel.Function("round_to",
				cel.Overload("round_to_timestamp_string", []*cel.Type{cel.TimestampType, cel.StringType}, cel.TimestampType,
					cel.BinaryBinding(roundingFn(roundTo)))),
		}
	}
}

func asTime(v ref.Val) (time.Time, bool) {
	t, ok := v.Value().(time.Time)
	return t, ok
}

func parseTimeFn(format string) func(ref.Val) ref.Val {
	return func(sv ref.Val) ref.Val {
		s, ok := sv.Value().(string)
		if !ok {
			return types.NewErr("parse_time: expected a string")
		}
		t, ok := event.ParseTimestamp(s)
		if !ok {
			return types.NewErr("parse_time: could not parse %q", s)
		}
		return types.Timestamp{Time: t}
	}
}

func parseTimeWithFormat(sv, fv ref.Val) ref.Val {
	s, ok1 := sv.Value().(string)
	format, ok2 := fv.Value().(string)
	if !ok1 || !ok2 {
		return types.NewErr("parse_time: expected (string, format string)")
	}
	t, ok := event.ParseTimestampWithFormat(s, format)
	if !ok {
		t, ok = event.ParseTimestamp(s)
	}
	if !ok {
		return types.NewErr("parse_time: could not parse %q with format %q", s, format)
	}
	return types.Timestamp{Time: t}
}

func formatTimeFn(tv, fv ref.Val) ref.Val {
	t, ok1 := asTime(tv)
	format, ok2 := fv.Value().(string)
	if !ok1 || !ok2 {
		return types.NewErr("format_time: expected (timestamp, format string)")
	}
	return types.String(t.Format(format))
}

func tzConvertFn(tv, zv ref.Val) ref.Val {
	t, ok1 := asTime(tv)
	zone, ok2 := zv.Value().(string)
	if !ok1 || !ok2 {
		return types.NewErr("tz_convert: expected (timestamp, zone string)")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return types.NewErr("tz_convert: unknown zone %q: %v", zone, err)
	}
	return types.Timestamp{Time: t.In(loc)}
}

func roundingFn(op func(time.Time, time.Duration) time.Time) func(ref.Val, ref.Val) ref.Val {
	return func(tv, iv ref.Val) ref.Val {
		t, ok1 := asTime(tv)
		interval, ok2 := iv.Value().(string)
		if !ok1 || !ok2 {
			return types.NewErr("rounding: expected (timestamp, interval string)")
		}
		d, err := time.ParseDuration(interval)
		if err != nil || d <= 0 {
			return types.NewErr("rounding: invalid interval %q", interval)
		}
		return types.Timestamp{Time: op(t, d)}
	}
}

func floorTo(t time.Time, d time.Duration) time.Time {
	return t.Truncate(d)
}

func ceilTo(t time.Time, d time.Duration) time.Time {
	floored := t.Truncate(d)
	if floored.Equal(t) {
		return floored
	}
	return floored.Add(d)
}

func roundTo(t time.Time, d time.Duration) time.Time {
	return t.Round(d)
}
