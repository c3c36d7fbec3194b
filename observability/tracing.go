package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/intake"

// Tracer provides OpenTelemetry tracing for intake.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new intake tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartIngestSpan starts a new span for an ingestion pipeline run.
func (t *Tracer) StartIngestSpan(ctx context.Context, endpointID, slug string, dryRun bool) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "intake.ingest",
		trace.WithAttributes(
			attribute.String("intake.endpoint_id", endpointID),
			attribute.String("intake.slug", slug),
			attribute.Bool("intake.dry_run", dryRun),
		),
	)
}

// EndIngestSpan ends an ingestion span with result attributes.
func (t *Tracer) EndIngestSpan(span trace.Span, status string, latencyMs int64) {
	span.SetAttributes(
		attribute.String("intake.status", status),
		attribute.Int64("intake.latency_ms", latencyMs),
	)
	span.End()
}
