package logger

import (
	"context"

	"github.com/crm/backend/internal/domain/crm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	operationKey contextKey = "operation"
	actorKey     contextKey = "actor_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithOperation tags the context with the store operation being run
// ("create", "delete", ...).
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// WithActor records the principal acting on the data
func WithActor(ctx context.Context, actor crm.Principal) context.Context {
	return context.WithValue(ctx, actorKey, actor.PrincipalID())
}

// GetOperation retrieves the operation from context
func GetOperation(ctx context.Context) string {
	op, _ := ctx.Value(operationKey).(string)
	return op
}

// GetActorID retrieves the acting principal's id from context, or 0
func GetActorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey).(int64)
	return id
}

// GetTraceID extracts the trace ID from the context's span
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// L returns the context logger enriched with trace_id, span_id, operation
// and actor_id when present.
//
//	logger.L(ctx).Info("record created", zap.String("entity", name))
func L(ctx context.Context) *zap.Logger {
	return Enrich(ctx, FromContext(ctx))
}

// Enrich adds the context fields L would add to an arbitrary logger
func Enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if op := GetOperation(ctx); op != "" {
		fields = append(fields, zap.String("operation", op))
	}
	if id := GetActorID(ctx); id != 0 {
		fields = append(fields, zap.Int64("actor_id", id))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
