package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder routes global spans into a recorder for the test
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	restoreGlobals(t)
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestStartStoreSpan(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartStoreSpan(context.Background(), "create", "Campaign", AttrRecordID.Int64(7))
	Finish(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "crm.create", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "create", attrs[AttrOperation].AsString())
	assert.Equal(t, "Campaign", attrs[AttrEntity].AsString())
	assert.Equal(t, int64(7), attrs[AttrRecordID].AsInt64())
	assert.Equal(t, "ok", attrs[AttrOutcome].AsString())
}

func TestFinish(t *testing.T) {
	t.Run("failure marks the span", func(t *testing.T) {
		recorder := installRecorder(t)
		_, span := StartStoreSpan(context.Background(), "delete", "Customer")
		Finish(span, fmt.Errorf("customer 1: %w", shared.ErrReferenced))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Len(t, spans[0].Events(), 1)
		assert.Equal(t, "referenced", attrMap(spans[0].Attributes())[AttrOutcome].AsString())
	})

	t.Run("not found is not a failure", func(t *testing.T) {
		recorder := installRecorder(t)
		_, span := StartStoreSpan(context.Background(), "get", "Lead")
		Finish(span, shared.ErrNotFound)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Unset, spans[0].Status().Code)
		assert.Equal(t, "not_found", attrMap(spans[0].Attributes())[AttrOutcome].AsString())
	})
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{shared.ErrNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", shared.ErrRequiredField), "invalid"},
		{shared.ErrInvalidInput, "invalid"},
		{shared.ErrDanglingReference, "dangling_reference"},
		{shared.ErrReferenced, "referenced"},
		{shared.ErrConstraintViolation, "constraint_violation"},
		{shared.ErrUnknownNavigation, "unknown"},
		{errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}
