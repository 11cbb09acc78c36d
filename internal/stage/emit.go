package stage

import (
	"context"

	"kelora/internal/apperrors"
	"kelora/internal/event"
)

// Sink is the narrow interface EmitStage needs from internal/sink,
// declared here (rather than imported) to keep this package free of a
// dependency on sink's formatter/writer machinery.
type Sink interface {
	Write(ev *event.Event) error
}

// EmitStage is the terminal stage: it hands the event to the configured
// formatter/sink and always yields Skip, since nothing downstream
// consumes its StageResult (spec.md §4.4.7).
type EmitStage struct {
	name string
	sink Sink
}

func NewEmitStage(name string, sink Sink) *EmitStage {
	return &EmitStage{name: name, sink: sink}
}

func (s *EmitStage) Name() string { return s.name }

func (s *EmitStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	if err := s.sink.Write(ev); err != nil {
		return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeSinkIO, "sink", s.name, err.Error()).Wrap(err))
	}
	return Skip()
}
