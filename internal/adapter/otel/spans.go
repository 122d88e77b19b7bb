package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cipherstudio"

// StartWorkspaceSpan starts a span for a workspace file operation.
func StartWorkspaceSpan(ctx context.Context, projectID, op, path string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "workspace."+op,
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("file.path", path),
		),
	)
}

// StartPreviewSpan starts a span for preview synthesis. The caller records
// the outcome kind once synthesis finishes.
func StartPreviewSpan(ctx context.Context, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "preview.synthesize",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// StartSaveSpan starts a span for project persistence.
func StartSaveSpan(ctx context.Context, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "project.save",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// SetSpanKind records the preview outcome kind on the span.
func SetSpanKind(span trace.Span, kind string) {
	span.SetAttributes(attribute.String("preview.kind", kind))
}

// SetSpanFileCount records the number of persisted files on the span.
func SetSpanFileCount(span trace.Span, n int) {
	span.SetAttributes(attribute.Int("project.file_count", n))
}
