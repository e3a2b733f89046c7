package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics records per-operation counts and latencies for the record store.
type StoreMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewStoreMetrics creates the store instruments on meter
func NewStoreMetrics(meter metric.Meter) (*StoreMetrics, error) {
	operations, err := meter.Int64Counter("crm.store.operations",
		metric.WithDescription("Store operations by entity and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	duration, err := meter.Float64Histogram("crm.store.duration",
		metric.WithDescription("Store operation latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return &StoreMetrics{operations: operations, duration: duration}, nil
}

// Record adds one observation. A nil receiver is a no-op.
func (m *StoreMetrics) Record(ctx context.Context, operation, entity string, started time.Time, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("entity", entity),
		attribute.String("outcome", Outcome(err)),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}

// RegisterPoolMetrics exports connection pool gauges read from db.Stats on
// every collection. Unregister the returned registration before closing db.
func RegisterPoolMetrics(meter metric.Meter, db *sql.DB) (metric.Registration, error) {
	open, err := meter.Int64ObservableGauge("crm.db.pool.open", metric.WithDescription("Open connections"))
	if err != nil {
		return nil, err
	}
	inUse, err := meter.Int64ObservableGauge("crm.db.pool.in_use", metric.WithDescription("Connections in use"))
	if err != nil {
		return nil, err
	}
	idle, err := meter.Int64ObservableGauge("crm.db.pool.idle", metric.WithDescription("Idle connections"))
	if err != nil {
		return nil, err
	}
	waits, err := meter.Int64ObservableCounter("crm.db.pool.waits", metric.WithDescription("Total waits for a connection"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := db.Stats()
		o.ObserveInt64(open, int64(s.OpenConnections))
		o.ObserveInt64(inUse, int64(s.InUse))
		o.ObserveInt64(idle, int64(s.Idle))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, open, inUse, idle, waits)
}
