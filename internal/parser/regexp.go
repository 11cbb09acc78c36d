package parser

import (
	"fmt"
	"regexp"

	"kelora/internal/event"
)

// RegexParser parses a line via a single regular expression, binding only
// its named capture groups to fields (spec.md §6.1 "re: unnamed groups are
// ignored"). Numeric-looking captures are inferred to Int/Float the same
// way logfmt values are.
type RegexParser struct {
	re      *regexp.Regexp
	pattern string
	names   []string
}

func NewRegexParser(pattern string) (*RegexParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("re: invalid pattern: %w", err)
	}
	names := re.SubexpNames()
	hasNamed := false
	for _, n := range names {
		if n != "" {
			hasNamed = true
			break
		}
	}
	if !hasNamed {
		return nil, fmt.Errorf("re: pattern has no named capture groups")
	}
	return &RegexParser{re: re, pattern: pattern, names: names}, nil
}

func (p *RegexParser) Name() string { return "re:" + p.pattern }

func (p *RegexParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: p.Name(), Reason: "pattern did not match"}
	}
	e := event.New(filename, lineNumber, line)
	for i, name := range p.names {
		if i == 0 || name == "" {
			continue
		}
		e.Set(name, inferScalar(m[i]))
	}
	return e, nil
}
