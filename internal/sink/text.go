package sink

import (
	"strings"

	"kelora/internal/event"
)

// TextFormatter renders the default human-readable line: an optional
// timestamp, the level (colored/emoji-prefixed per Style), the message,
// then every other projected field as key=val — grounded on
// formatTextOutput's "timestamp | [TYPE:ID] | message" part-joining
// shape, adapted from a fixed label set to Kelora's arbitrary field set.
type TextFormatter struct {
	Projection KeyProjection
	Timestamps TimestampDisplay
	Style      Style
}

func (f *TextFormatter) Format(ev *event.Event) ([]byte, error) {
	var b strings.Builder

	if ts, ok := ev.Timestamp(); ok {
		b.WriteString(paint(f.Timestamps.render("ts", ts), colorGray, f.Style.Color))
		b.WriteByte(' ')
	}

	lvl := ev.LevelValue()
	if f.Style.Emoji {
		b.WriteString(levelEmoji(lvl))
		b.WriteByte(' ')
	}
	b.WriteString(paint(strings.ToUpper(lvl.String()), levelColor(lvl), f.Style.Color))

	if msg, ok := ev.Fields.Get("msg"); ok && !msg.IsNull() {
		b.WriteByte(' ')
		b.WriteString(scalarString("msg", msg, f.Timestamps))
	}

	first := true
	var rest strings.Builder
	for _, kv := range f.Projection.Project(ev) {
		if kv.Key == "ts" || kv.Key == "level" || kv.Key == "msg" {
			continue
		}
		writeKeyval(&rest, " ", &first, kv.Key, scalarString(kv.Key, kv.Value, f.Timestamps))
	}
	if rest.Len() > 0 {
		b.WriteByte(' ')
		b.WriteString(rest.String())
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
