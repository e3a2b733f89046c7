package telemetry

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for CRM spans
const TracerName = "github.com/crm/backend"

// Span attribute keys
const (
	AttrOperation  = attribute.Key("crm.operation")
	AttrEntity     = attribute.Key("crm.entity")
	AttrRecordID   = attribute.Key("crm.record_id")
	AttrNavigation = attribute.Key("crm.navigation")
	AttrOutcome    = attribute.Key("crm.outcome")
)

// StartStoreSpan starts a span named "crm.<operation>" tagged with the entity.
// End it with Finish.
//
//	ctx, span := telemetry.StartStoreSpan(ctx, "create", "Campaign")
//	defer func() { telemetry.Finish(span, err) }()
func StartStoreSpan(ctx context.Context, operation, entity string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{AttrOperation.String(operation), AttrEntity.String(entity)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "crm."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records the outcome of err on the span and ends it.
// Missing records are an expected outcome and do not mark the span as failed.
func Finish(span trace.Span, err error) {
	outcome := Outcome(err)
	span.SetAttributes(AttrOutcome.String(outcome))
	if err != nil && outcome != "not_found" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Outcome classifies an error into a low-cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrRequiredField), errors.Is(err, shared.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, shared.ErrDanglingReference):
		return "dangling_reference"
	case errors.Is(err, shared.ErrReferenced):
		return "referenced"
	case errors.Is(err, shared.ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, shared.ErrUnknownEntity), errors.Is(err, shared.ErrUnknownNavigation):
		return "unknown"
	default:
		return "error"
	}
}
