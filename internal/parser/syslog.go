package parser

import (
	syslog "github.com/leodido/go-syslog/v4"
	"github.com/leodido/go-syslog/v4/rfc3164"
	"github.com/leodido/go-syslog/v4/rfc5424"

	"kelora/internal/event"
)

// SyslogParser parses RFC3164 or RFC5424 syslog lines via
// leodido/go-syslog/v4, grounded on influxdb-telegraf's syslog input plugin
// dependency. The variant is fixed at construction (spec.md §6.1 "syslog:
// rfc3164 (default) or rfc5424, selected via --syslog-variant").
type SyslogParser struct {
	variant string
	parser  syslog.Machine
}

func NewSyslogParser(variant string) *SyslogParser {
	if variant == "" {
		variant = "rfc3164"
	}
	var m syslog.Machine
	if variant == "rfc5424" {
		m = rfc5424.NewParser()
	} else {
		m = rfc3164.NewParser()
	}
	return &SyslogParser{variant: variant, parser: m}
}

func (p *SyslogParser) Name() string { return "syslog" }

func (p *SyslogParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	msg, err := p.parser.Parse([]byte(line))
	if err != nil {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "syslog", Reason: err.Error()}
	}

	e := event.New(filename, lineNumber, line)
	base := msg.(syslog.Base)

	if base.Priority() != nil {
		e.Set("priority", event.Int(int64(*base.Priority())))
	}
	if base.Facility() != nil {
		e.Set("facility", event.Int(int64(*base.Facility())))
	}
	if base.Severity() != nil {
		e.Set("severity", event.Int(int64(*base.Severity())))
	}
	if base.Timestamp() != nil {
		e.Set("timestamp", event.DateTime(*base.Timestamp()))
	}
	if base.Hostname() != nil {
		e.Set("hostname", event.String(*base.Hostname()))
	}
	if base.Appname() != nil {
		e.Set("appname", event.String(*base.Appname()))
	}
	if base.ProcID() != nil {
		e.Set("proc_id", event.String(*base.ProcID()))
	}
	if base.MsgID() != nil {
		e.Set("msg_id", event.String(*base.MsgID()))
	}
	if base.Message() != nil {
		e.Set("message", event.String(*base.Message()))
	}

	if m5, ok := msg.(*rfc5424.SyslogMessage); ok && m5.StructuredData != nil {
		for sdID, params := range *m5.StructuredData {
			for k, v := range params {
				e.Set(sdID+"."+k, event.String(v))
			}
		}
	}

	return e, nil
}
