package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONParserPreservesOrderAndNumericKind(t *testing.T) {
	p := NewJSONParser()
	e, err := p.Parse(`{"z":1,"a":2.5,"nested":{"x":true}}`, "f", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "nested"}, e.Keys())

	n, ok := e.Get("z").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)

	f, ok := e.Get("a").AsFloat()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)

	m, ok := e.Get("nested").AsMap()
	require.True(t, ok)
	v, _ := m.Get("x")
	b, _ := v.AsBool()
	assert.True(t, b)
}

func TestJSONParserRejectsNonObject(t *testing.T) {
	p := NewJSONParser()
	_, err := p.Parse(`[1,2,3]`, "f", 1)
	assert.Error(t, err)
}

func TestLogfmtParserInfersScalars(t *testing.T) {
	p := NewLogfmtParser()
	e, err := p.Parse(`level=info count=3 ratio=1.5 ok=true msg="hello world"`, "f", 1)
	require.NoError(t, err)

	n, _ := e.Get("count").AsInt()
	assert.Equal(t, int64(3), n)
	fl, _ := e.Get("ratio").AsFloat()
	assert.Equal(t, 1.5, fl)
	b, _ := e.Get("ok").AsBool()
	assert.True(t, b)
	s, _ := e.Get("msg").AsString()
	assert.Equal(t, "hello world", s)
}

func TestLineParserSingleMessageField(t *testing.T) {
	p := NewLineParser()
	e, err := p.Parse("some unstructured text", "f", 1)
	require.NoError(t, err)
	s, _ := e.Get("message").AsString()
	assert.Equal(t, "some unstructured text", s)
}

func TestAutoParserJSONFirst(t *testing.T) {
	p := NewAutoParser(NewJSONParser(), NewLogfmtParser(), NewLineParser())
	e, err := p.Parse(`  {"a":1}`, "f", 1)
	require.NoError(t, err)
	assert.True(t, e.Has("a"))
}

func TestAutoParserLogfmtFallback(t *testing.T) {
	p := NewAutoParser(NewJSONParser(), NewLogfmtParser(), NewLineParser())
	e, err := p.Parse(`level=info msg=hi count=1`, "f", 1)
	require.NoError(t, err)
	assert.True(t, e.Has("level"))
}

func TestAutoParserLineFallback(t *testing.T) {
	p := NewAutoParser(NewJSONParser(), NewLogfmtParser(), NewLineParser())
	e, err := p.Parse(`just some plain text here`, "f", 1)
	require.NoError(t, err)
	assert.True(t, e.Has("message"))
}

func TestCSVParserWithHeader(t *testing.T) {
	p := NewCSVParser(',', true, nil)
	_, err := p.Parse("name,age", "f", 1)
	assert.True(t, IsHeaderConsumed(err))

	e, err := p.Parse("alice,30", "f", 2)
	require.NoError(t, err)
	s, _ := e.Get("name").AsString()
	assert.Equal(t, "alice", s)
	n, _ := e.Get("age").AsInt()
	assert.Equal(t, int64(30), n)
}

func TestCSVParserColumnTypeOverride(t *testing.T) {
	p := NewCSVParser(',', false, map[string]ColumnType{"col1": ColumnString})
	e, err := p.Parse("007,1.5", "f", 1)
	require.NoError(t, err)
	s, _ := e.Get("col1").AsString()
	assert.Equal(t, "007", s)
	f, _ := e.Get("col2").AsFloat()
	assert.Equal(t, 1.5, f)
}

func TestCombinedParser(t *testing.T) {
	p := NewCombinedParser()
	line := `127.0.0.1 - frank [10/Oct/2023:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326 "http://example.com/" "Mozilla/5.0"`
	e, err := p.Parse(line, "f", 1)
	require.NoError(t, err)
	s, _ := e.Get("host").AsString()
	assert.Equal(t, "127.0.0.1", s)
	n, _ := e.Get("status").AsInt()
	assert.Equal(t, int64(200), n)
	_, ok := e.Timestamp()
	assert.True(t, ok)
}

func TestCEFParserExtractsHeaderAndExtension(t *testing.T) {
	p := NewCEFParser()
	line := `CEF:0|Security|threatmanager|1.0|100|worm successfully stopped|10|src=10.0.0.1 dst=2.1.2.2 spt=1232`
	e, err := p.Parse(line, "f", 1)
	require.NoError(t, err)
	s, _ := e.Get("device_vendor").AsString()
	assert.Equal(t, "Security", s)
	src, _ := e.Get("src").AsString()
	assert.Equal(t, "10.0.0.1", src)
	spt, _ := e.Get("spt").AsInt()
	assert.Equal(t, int64(1232), spt)
}

func TestCEFParserExtensionFieldOrderIsDeterministic(t *testing.T) {
	p := NewCEFParser()
	line := `CEF:0|Security|threatmanager|1.0|100|worm successfully stopped|10|zzz=1 aaa=2 mmm=3 src=10.0.0.1 dst=2.1.2.2`
	want := []string{"cef_version", "device_vendor", "device_product", "device_version", "signature_id", "name", "severity", "zzz", "aaa", "mmm", "src", "dst"}
	for i := 0; i < 10; i++ {
		e, err := p.Parse(line, "f", 1)
		require.NoError(t, err)
		assert.Equal(t, want, e.Keys())
	}
}

func TestColsParserJoinSkipAndTail(t *testing.T) {
	p, err := NewColsParser("ts(2) - level *rest", "")
	require.NoError(t, err)
	e, err := p.Parse("2024-01-02 03:04:05 ignored INFO the rest of the message", "f", 1)
	require.NoError(t, err)
	s, _ := e.Get("ts").AsString()
	assert.Equal(t, "2024-01-02 03:04:05", s)
	lvl, _ := e.Get("level").AsString()
	assert.Equal(t, "INFO", lvl)
	rest, _ := e.Get("rest").AsString()
	assert.Equal(t, "the rest of the message", rest)
}

func TestColsParserCustomSeparatorJoinsAndCapturesTailVerbatim(t *testing.T) {
	p, err := NewColsParser("a b *rest", ",")
	require.NoError(t, err)
	e, err := p.Parse("x,y,z  q", "f", 1)
	require.NoError(t, err)
	a, _ := e.Get("a").AsString()
	assert.Equal(t, "x", a)
	b, _ := e.Get("b").AsString()
	assert.Equal(t, "y", b)
	rest, _ := e.Get("rest").AsString()
	assert.Equal(t, "z  q", rest)
}

func TestColsParserCustomSeparatorJoinUsesSeparator(t *testing.T) {
	p, err := NewColsParser("pair(2) - tail", ",")
	require.NoError(t, err)
	e, err := p.Parse("one,two,skip,tail", "f", 1)
	require.NoError(t, err)
	pair, _ := e.Get("pair").AsString()
	assert.Equal(t, "one,two", pair)
	tail, _ := e.Get("tail").AsString()
	assert.Equal(t, "tail", tail)
}

func TestRegexParserNamedCapturesOnly(t *testing.T) {
	p, err := NewRegexParser(`^(?P<ip>\S+) (?:\S+) (?P<code>\d+)$`)
	require.NoError(t, err)
	e, err := p.Parse("10.0.0.1 unused 404", "f", 1)
	require.NoError(t, err)
	assert.False(t, e.Has("2"))
	n, _ := e.Get("code").AsInt()
	assert.Equal(t, int64(404), n)
}

func TestRegexParserRejectsNoNamedGroups(t *testing.T) {
	_, err := NewRegexParser(`^(\S+) (\S+)$`)
	assert.Error(t, err)
}

func TestRegistryResolvesInlineSpecs(t *testing.T) {
	r := NewRegistry(Options{})
	p, err := r.Resolve("cols:a b c")
	require.NoError(t, err)
	assert.Equal(t, "cols:a b c", p.Name())

	p2, err := r.Resolve("re:(?P<x>\\d+)")
	require.NoError(t, err)
	assert.Equal(t, "re:(?P<x>\\d+)", p2.Name())

	_, err = r.Resolve("nonexistent")
	assert.Error(t, err)
}
