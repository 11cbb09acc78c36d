package parser

import (
	"fmt"
	"strings"

	"kelora/internal/event"
)

// colsToken is one compiled element of a "cols:" spec.
type colsToken struct {
	kind tokenKind
	name string
	n    int // join width for name(n) / skip width for -(n)
}

type tokenKind int

const (
	tokField   tokenKind = iota // name: one token
	tokJoin                     // name(n): join n consecutive tokens with the separator (a space in whitespace mode)
	tokSkip                     // -: drop one token
	tokSkipN                    // -(n): drop n tokens
	tokTail                     // *name: remaining tokens joined verbatim
)

// ColsParser implements the "cols:" column-spec mini-language (spec.md
// §6.1): whitespace-split the line (or split on an explicit separator) and
// assign tokens to fields by a small positional grammar:
//
//	name       - one token
//	name(n)    - join the next n tokens with the separator (a single space
//	             when splitting on whitespace)
//	-          - skip one token
//	-(n)       - skip n tokens
//	*name      - remaining tokens joined verbatim (must be last)
type ColsParser struct {
	tokens []colsToken
	sep    string // "" means split on runs of whitespace
	spec   string
}

func NewColsParser(spec string, sep string) (*ColsParser, error) {
	tokens, err := parseColsSpec(spec)
	if err != nil {
		return nil, err
	}
	return &ColsParser{tokens: tokens, sep: sep, spec: spec}, nil
}

func (p *ColsParser) Name() string { return "cols:" + p.spec }

func parseColsSpec(spec string) ([]colsToken, error) {
	var tokens []colsToken
	fields := strings.Fields(spec)
	for i, f := range fields {
		switch {
		case f == "-":
			tokens = append(tokens, colsToken{kind: tokSkip})
		case strings.HasPrefix(f, "-(") && strings.HasSuffix(f, ")"):
			n, err := parseParenInt(f, "-")
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, colsToken{kind: tokSkipN, n: n})
		case strings.HasPrefix(f, "*"):
			if i != len(fields)-1 {
				return nil, fmt.Errorf("cols: tail capture %q must be the last field", f)
			}
			tokens = append(tokens, colsToken{kind: tokTail, name: strings.TrimPrefix(f, "*")})
		case strings.Contains(f, "(") && strings.HasSuffix(f, ")"):
			open := strings.Index(f, "(")
			name := f[:open]
			n, err := parseParenInt(f, name)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, colsToken{kind: tokJoin, name: name, n: n})
		default:
			tokens = append(tokens, colsToken{kind: tokField, name: f})
		}
	}
	return tokens, nil
}

func parseParenInt(f, prefix string) (int, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(f, prefix+"("), ")")
	n, ok := parseStrictInt(inner)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("cols: invalid width in %q", f)
	}
	return int(n), nil
}

// split tokenizes line and also returns each token's starting byte offset
// within line, so tokTail can slice the verbatim remainder of the input
// (spec.md §6.1: "the tail is captured verbatim from the original input,
// preserving internal whitespace/punctuation") instead of re-joining
// already-split tokens and losing that texture.
func (p *ColsParser) split(line string) (toks []string, offsets []int) {
	if p.sep == "" {
		i := 0
		for i < len(line) {
			for i < len(line) && isColsSpace(line[i]) {
				i++
			}
			if i >= len(line) {
				break
			}
			start := i
			for i < len(line) && !isColsSpace(line[i]) {
				i++
			}
			toks = append(toks, line[start:i])
			offsets = append(offsets, start)
		}
		return toks, offsets
	}

	start := 0
	for {
		idx := strings.Index(line[start:], p.sep)
		if idx < 0 {
			toks = append(toks, line[start:])
			offsets = append(offsets, start)
			return toks, offsets
		}
		toks = append(toks, line[start:start+idx])
		offsets = append(offsets, start)
		start += idx + len(p.sep)
	}
}

func isColsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func (p *ColsParser) joinSep() string {
	if p.sep == "" {
		return " "
	}
	return p.sep
}

func (p *ColsParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	toks, offsets := p.split(line)
	return p.parseTokens(toks, offsets, line, filename, lineNumber)
}

func (p *ColsParser) parseTokens(toks []string, offsets []int, raw string, filename string, lineNumber int) (*event.Event, error) {
	e := event.New(filename, lineNumber, raw)

	pos := 0
	for _, t := range p.tokens {
		switch t.kind {
		case tokField:
			if pos >= len(toks) {
				return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: p.Name(), Reason: "not enough tokens for field " + t.name}
			}
			e.Set(t.name, inferScalar(toks[pos]))
			pos++
		case tokJoin:
			end := pos + t.n
			if end > len(toks) {
				end = len(toks)
			}
			e.Set(t.name, event.String(strings.Join(toks[pos:end], p.joinSep())))
			pos = end
		case tokSkip:
			if pos < len(toks) {
				pos++
			}
		case tokSkipN:
			pos += t.n
			if pos > len(toks) {
				pos = len(toks)
			}
		case tokTail:
			if pos < len(toks) && pos < len(offsets) {
				e.Set(t.name, event.String(raw[offsets[pos]:]))
			} else {
				e.Set(t.name, event.String(""))
			}
			pos = len(toks)
		}
	}
	return e, nil
}

// ParseTokens is the array-overload variant named in spec.md §6.1: apply
// the same column spec to an already-split slice of tokens (used when the
// caller has pre-tokenized a line, e.g. from a script helper), without
// re-splitting them. There's no original line to slice verbatim here, so
// a tail capture falls back to joining the remaining tokens with the
// configured separator.
func (p *ColsParser) ParseTokens(toks []string, filename string, lineNumber int) (*event.Event, error) {
	joined := strings.Join(toks, p.joinSep())
	offsets := make([]int, len(toks))
	pos := 0
	sep := p.joinSep()
	for i, t := range toks {
		offsets[i] = pos
		pos += len(t) + len(sep)
	}
	return p.parseTokens(toks, offsets, joined, filename, lineNumber)
}
