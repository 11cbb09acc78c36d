package parser

import (
	"strings"

	"kelora/internal/event"
)

// AutoParser implements the "auto" format heuristic (spec.md §4.2):
//   - if the first non-whitespace byte is '{', try JSON;
//   - else if at least half of the whitespace-separated tokens contain
//     an "=" (quoting is not considered), try logfmt;
//   - else fall back to line.
// A failed probe falls through to the next rule rather than surfacing a
// ParseError, since "auto" promises to always produce an event.
type AutoParser struct {
	jsonP   Parser
	logfmtP Parser
	lineP   Parser
}

func NewAutoParser(jsonP, logfmtP, lineP Parser) *AutoParser {
	return &AutoParser{jsonP: jsonP, logfmtP: logfmtP, lineP: lineP}
}

func (p *AutoParser) Name() string { return "auto" }

func (p *AutoParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	trimmed := strings.TrimLeft(line, " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		if e, err := p.jsonP.Parse(line, filename, lineNumber); err == nil {
			return e, nil
		}
	}
	if looksLikeLogfmt(trimmed) {
		if e, err := p.logfmtP.Parse(line, filename, lineNumber); err == nil {
			return e, nil
		}
	}
	return p.lineP.Parse(line, filename, lineNumber)
}

// looksLikeLogfmt reports whether at least half of the whitespace-separated
// tokens in s contain an "=", the probe named in spec.md §4.2.
func looksLikeLogfmt(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	withEq := 0
	for _, f := range fields {
		if strings.Contains(f, "=") {
			withEq++
		}
	}
	return withEq*2 >= len(fields)
}
