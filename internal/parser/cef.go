package parser

import (
	"strconv"
	"strings"

	"kelora/internal/event"
)

// CEFParser parses ArcSight Common Event Format lines:
//
//	CEF:Version|Device Vendor|Device Product|Device Version|Device Event Class ID|Name|Severity|[Extension]
//
// No example repo in the corpus imports a dedicated CEF library (it is a
// narrow, security-appliance-specific wire format), so this is a hand-rolled
// splitter in the same style as the other fixed-delimiter parsers here —
// justified as a stdlib-only exception in the project's grounding notes.
type CEFParser struct{}

func NewCEFParser() *CEFParser { return &CEFParser{} }

func (p *CEFParser) Name() string { return "cef" }

func (p *CEFParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	if !strings.HasPrefix(line, "CEF:") {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "cef", Reason: "missing CEF: prefix"}
	}
	body := strings.TrimPrefix(line, "CEF:")
	parts := splitUnescaped(body, '|', 8)
	if len(parts) < 7 {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "cef", Reason: "expected 7 pipe-delimited header fields"}
	}

	e := event.New(filename, lineNumber, line)
	e.Set("cef_version", event.String(parts[0]))
	e.Set("device_vendor", event.String(parts[1]))
	e.Set("device_product", event.String(parts[2]))
	e.Set("device_version", event.String(parts[3]))
	e.Set("signature_id", event.String(parts[4]))
	e.Set("name", event.String(parts[5]))
	e.Set("severity", event.String(parts[6]))

	if len(parts) == 8 {
		for _, kv := range parseCEFExtension(parts[7]) {
			e.Set(kv.key, kv.value)
		}
	}
	return e, nil
}

// splitUnescaped splits s on sep, honoring backslash escapes of sep itself,
// stopping after maxParts fields (the final field retains any remaining
// unsplit separators, as CEF's extension field may legitimately contain
// '|').
func splitUnescaped(s string, sep byte, maxParts int) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == sep {
			cur.WriteByte(sep)
			i++
			continue
		}
		if c == sep && len(parts) < maxParts-1 {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	parts = append(parts, cur.String())
	return parts
}

// cefExtKV is one key=value pair from a CEF extension field, in the order
// it was encountered — map iteration order in Go is randomized, and
// every other parser in this package (json/logfmt/csv/combined/syslog)
// sets fields in encounter order, so CEF must too.
type cefExtKV struct {
	key   string
	value event.FieldValue
}

// parseCEFExtension parses the "key=value key2=value2" extension field,
// where values may contain spaces up to the next recognizable "key=" token.
func parseCEFExtension(ext string) []cefExtKV {
	tokens := tokenizeCEFExtension(ext)
	out := make([]cefExtKV, len(tokens))
	for i, t := range tokens {
		if n, err := strconv.ParseInt(t.value, 10, 64); err == nil {
			out[i] = cefExtKV{key: t.key, value: event.Int(n)}
			continue
		}
		out[i] = cefExtKV{key: t.key, value: event.String(t.value)}
	}
	return out
}

type cefRawKV struct {
	key   string
	value string
}

func tokenizeCEFExtension(ext string) []cefRawKV {
	var out []cefRawKV
	fields := strings.Fields(ext)
	var curKey string
	var curVal []string
	flush := func() {
		if curKey != "" {
			out = append(out, cefRawKV{key: curKey, value: strings.Join(curVal, " ")})
		}
	}
	for _, f := range fields {
		if idx := strings.Index(f, "="); idx > 0 && isCEFKeyToken(f[:idx]) {
			flush()
			curKey = f[:idx]
			curVal = []string{f[idx+1:]}
			continue
		}
		curVal = append(curVal, f)
	}
	flush()
	return out
}

func isCEFKeyToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
