// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the default tracer name for the application
	TracerName = "github.com/draftforge/draftforge"
)

// Tracer returns the global tracer for the application
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a new span with the given name and returns the context and span.
// The caller is responsible for calling span.End() when the operation is complete.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SpanFromContext returns the current span from the context.
// If no span is found, a no-op span is returned.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError records an error on the span and sets its status to error
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanOK sets the span status to OK
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanAttributes sets attributes on the span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// Common attribute keys for consistent naming
var (
	// Job attributes
	AttrJobID     = attribute.Key("job.id")
	AttrJobStatus = attribute.Key("job.status")
	AttrJobMode   = attribute.Key("job.mode")

	// Document attributes
	AttrDocumentID   = attribute.Key("document.id")
	AttrDocumentName = attribute.Key("document.name")

	// Section attributes
	AttrSectionID    = attribute.Key("section.id")
	AttrSectionTitle = attribute.Key("section.title")
	AttrSectionLevel = attribute.Key("section.level")

	// LLM attributes
	AttrLLMModel  = attribute.Key("llm.model")
	AttrLLMTokens = attribute.Key("llm.tokens")

	// Result attributes
	AttrSectionsCount = attribute.Key("sections.count")
	AttrDurationMs    = attribute.Key("duration.ms")
)

// WithJobAttributes returns span start options with generation job attributes
func WithJobAttributes(jobID, documentID, mode string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrJobID.String(jobID),
		AttrDocumentID.String(documentID),
		AttrJobMode.String(mode),
	)
}

// WithSectionAttributes returns span start options with section attributes
func WithSectionAttributes(sectionID string, title string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrSectionID.String(sectionID),
		AttrSectionTitle.String(title),
	)
}
