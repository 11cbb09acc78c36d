package diag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TraceSelector is a parsed "--trace=<selector>" value (spec.md §6.1): a
// comma-separated set of stage names to span, or "*" for every stage.
// Grounded on the teacher's pkg/tracing.TracingConfig/TracingManager,
// generalized from a service-wide always-on tracer into an opt-in,
// selector-scoped one that spans only the configured pipeline stages
// rather than every HTTP handler.
type TraceSelector struct {
	all   bool
	names map[string]struct{}
}

// ParseTraceSelector parses the --trace flag value. An empty string
// disables tracing; "*" enables every stage.
func ParseTraceSelector(spec string) TraceSelector {
	sel := TraceSelector{names: make(map[string]struct{})}
	if spec == "" {
		return sel
	}
	if spec == "*" {
		sel.all = true
		return sel
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			sel.names[part] = struct{}{}
		}
	}
	return sel
}

// Enabled reports whether tracing is active at all.
func (s TraceSelector) Enabled() bool { return s.all || len(s.names) > 0 }

// Matches reports whether stage name should be spanned.
func (s TraceSelector) Matches(name string) bool {
	if s.all {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// TracerConfig configures the exporter the Tracer sends spans to,
// mirroring pkg/tracing.TracingConfig's exporter/endpoint/sample-rate
// knobs but dropped to the subset a CLI diagnostics flag needs.
type TracerConfig struct {
	ServiceName string
	Exporter    string // "otlp" or "jaeger", mirroring TracingManager.createExporter
	Endpoint    string
	SampleRate  float64
}

func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		ServiceName: "kelora",
		Exporter:    "otlp",
		Endpoint:    "localhost:4318",
		SampleRate:  1.0,
	}
}

// newExporter picks the span exporter named by cfg.Exporter, mirroring
// TracingManager.createExporter's switch (minus its "console" fallback,
// which that implementation itself only aliases to the OTLP case).
func newExporter(cfg TracerConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	case "otlp", "":
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		))
	default:
		return nil, fmt.Errorf("diag: unsupported trace exporter %q", cfg.Exporter)
	}
}

// Tracer wraps an OpenTelemetry TracerProvider scoped to one run. A noop
// Tracer (selector disabled) hands back a tracer from the global
// otel.Tracer registry without ever configuring an exporter, so
// --trace-free runs pay no OTel setup cost.
type Tracer struct {
	selector TraceSelector
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracer builds a Tracer. If selector is disabled, spans are
// discarded via OpenTelemetry's no-op global tracer.
func NewTracer(selector TraceSelector, cfg TracerConfig) (*Tracer, error) {
	if !selector.Enabled() {
		return &Tracer{selector: selector, tracer: otel.Tracer("kelora/noop")}, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("diag: failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("diag: failed to create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Tracer{
		selector: selector,
		provider: provider,
		tracer:   otel.Tracer(cfg.ServiceName),
	}, nil
}

// StageSpan starts a span for the named stage if the selector matches
// it, otherwise returns ctx unchanged and a no-op end function (spec.md
// §6.1 "--trace=<selector>" spans "parse → each configured stage →
// emit"; unselected stages must cost nothing).
func (t *Tracer) StageSpan(ctx context.Context, name string) (context.Context, func(err error)) {
	if !t.selector.Matches(name) {
		return ctx, func(error) {}
	}
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Shutdown flushes and stops the tracer provider, a no-op when tracing
// was never enabled.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
