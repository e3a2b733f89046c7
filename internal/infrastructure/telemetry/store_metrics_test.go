package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestStoreMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	m, err := NewStoreMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	m.Record(ctx, "create", "Campaign", time.Now(), nil)
	m.Record(ctx, "create", "Campaign", time.Now(), nil)
	m.Record(ctx, "delete", "Customer", time.Now(), shared.ErrReferenced)

	metrics := collect(t, reader)

	ops, ok := metrics["crm.store.operations"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range ops.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("operation"))
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[op.AsString()+"/"+outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"create/ok": 2, "delete/referenced": 1}, counts)

	hist, ok := metrics["crm.store.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestStoreMetrics_NilReceiver(t *testing.T) {
	var m *StoreMetrics
	assert.NotPanics(t, func() {
		m.Record(context.Background(), "get", "Lead", time.Now(), nil)
	})
}

func TestRegisterPoolMetrics(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	reg, err := RegisterPoolMetrics(meter, db)
	require.NoError(t, err)
	defer func() { _ = reg.Unregister() }()

	metrics := collect(t, reader)
	for _, name := range []string{"crm.db.pool.open", "crm.db.pool.in_use", "crm.db.pool.idle", "crm.db.pool.waits"} {
		assert.Contains(t, metrics, name)
	}

	gauge, ok := metrics["crm.db.pool.in_use"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Zero(t, gauge.DataPoints[0].Value)
}
