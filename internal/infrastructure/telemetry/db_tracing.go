package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans
	SlowQueryThresh time.Duration // queries slower than this get a slow_query event
	DBSystem        string        // "postgresql" or "sqlite"
}

// DBTracingFromConfig derives the tracing settings for the configured driver
func DBTracingFromConfig(tc config.TelemetryConfig, db config.DatabaseConfig) DBTracingConfig {
	system := "postgresql"
	if db.Driver == config.DriverSQLite {
		system = "sqlite"
	}
	return DBTracingConfig{
		Enabled:         tc.Enabled && tc.DBTraceEnabled,
		LogFullSQL:      tc.DBLogFullSQL,
		SlowQueryThresh: tc.DBSlowQueryThresh,
		DBSystem:        system,
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db plus callbacks that tag each span
// with the table, the affected row count and a slow_query event.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		annotateSpan(tx, cfg.SlowQueryThresh)
	}

	// Registered ahead of otelgorm so its span is still open in the after hooks.
	cb := db.Callback()
	errs := []error{
		cb.Create().Before("gorm:create").Register("crm_timing:before_create", before),
		cb.Query().Before("gorm:query").Register("crm_timing:before_query", before),
		cb.Update().Before("gorm:update").Register("crm_timing:before_update", before),
		cb.Delete().Before("gorm:delete").Register("crm_timing:before_delete", before),
		cb.Row().Before("gorm:row").Register("crm_timing:before_row", before),
		cb.Raw().Before("gorm:raw").Register("crm_timing:before_raw", before),
		cb.Create().After("gorm:create").Register("crm_timing:after_create", after),
		cb.Query().After("gorm:query").Register("crm_timing:after_query", after),
		cb.Update().After("gorm:update").Register("crm_timing:after_update", after),
		cb.Delete().After("gorm:delete").Register("crm_timing:after_delete", after),
		cb.Row().After("gorm:row").Register("crm_timing:after_row", after),
		cb.Raw().After("gorm:raw").Register("crm_timing:after_raw", after),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
		zap.String("db_system", cfg.DBSystem),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, slow time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if tx.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok || slow <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > slow {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", slow.Milliseconds()),
		))
	}
}
