package pipelineconfig

import (
	"kelora/internal/parser"
)

// BuildParser resolves Config's input-format knobs into the parser.Parser
// instance internal/scheduler's Sequential/Parallel runs every record
// through, sharing one Registry (and therefore one auto-detect probe
// order) across every caller.
func BuildParser(c Config) (parser.Parser, error) {
	reg := parser.NewRegistry(parser.Options{
		HasHeader:     c.HasHeader,
		ColumnTypes:   c.ColumnTypes,
		SyslogVariant: c.SyslogVariant,
	})
	return reg.Resolve(c.Format)
}
