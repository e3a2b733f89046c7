package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedLead struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func (tracedLead) TableName() string { return "traced_leads" }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedLead{}))
	return db
}

func TestDBTracingFromConfig(t *testing.T) {
	tc := config.TelemetryConfig{Enabled: true, DBTraceEnabled: true, DBSlowQueryThresh: time.Second}

	cfg := DBTracingFromConfig(tc, config.DatabaseConfig{Driver: config.DriverPostgres})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "postgresql", cfg.DBSystem)
	assert.Equal(t, time.Second, cfg.SlowQueryThresh)

	cfg = DBTracingFromConfig(tc, config.DatabaseConfig{Driver: config.DriverSQLite})
	assert.Equal(t, "sqlite", cfg.DBSystem)

	tc.Enabled = false
	assert.False(t, DBTracingFromConfig(tc, config.DatabaseConfig{}).Enabled)
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{}, zap.NewNop()))
}

func TestRegisterDBTracing_AnnotatesSpans(t *testing.T) {
	recorder := installRecorder(t)
	db := setupTestDB(t)

	err := RegisterDBTracing(db, DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: time.Nanosecond,
		DBSystem:        "sqlite",
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedLead{Name: "J. Doe"}).Error)

	var found bool
	for _, span := range recorder.Ended() {
		attrs := attrMap(span.Attributes())
		if attrs[attribute.Key("db.sql.table")].AsString() != "traced_leads" {
			continue
		}
		found = true
		assert.Equal(t, int64(1), attrs[attribute.Key("db.rows_affected")].AsInt64())
		assert.True(t, attrs[attribute.Key("db.slow_query")].AsBool())

		var names []string
		for _, e := range span.Events() {
			names = append(names, e.Name)
		}
		assert.Contains(t, names, "slow_query_warning")
	}
	assert.True(t, found, "expected an annotated span for traced_leads")
}
