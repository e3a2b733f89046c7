package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		opts    []GormLoggerOption
		elapsed time.Duration
		err     error
		want    string
		wantLvl zapcore.Level
	}{
		{
			name:    "statement at info",
			level:   gormlogger.Info,
			want:    MsgStatement,
			wantLvl: zapcore.DebugLevel,
		},
		{
			name:  "statement hidden at warn",
			level: gormlogger.Warn,
		},
		{
			name:    "failure",
			level:   gormlogger.Error,
			err:     errors.New("FOREIGN KEY constraint failed"),
			want:    MsgFailedStatement,
			wantLvl: zapcore.ErrorLevel,
		},
		{
			name:  "record not found ignored",
			level: gormlogger.Info,
			opts:  []GormLoggerOption{WithIgnoreRecordNotFoundError(true)},
			err:   gormlogger.ErrRecordNotFound,
		},
		{
			name:    "record not found kept",
			level:   gormlogger.Error,
			opts:    []GormLoggerOption{WithIgnoreRecordNotFoundError(false)},
			err:     gormlogger.ErrRecordNotFound,
			want:    MsgFailedStatement,
			wantLvl: zapcore.ErrorLevel,
		},
		{
			name:    "slow",
			level:   gormlogger.Warn,
			opts:    []GormLoggerOption{WithSlowThreshold(time.Millisecond)},
			elapsed: time.Second,
			want:    MsgSlowStatement,
			wantLvl: zapcore.WarnLevel,
		},
		{
			name:    "slow reporting off",
			level:   gormlogger.Warn,
			opts:    []GormLoggerOption{WithSlowThreshold(0)},
			elapsed: time.Hour,
		},
		{
			name:    "silent",
			level:   gormlogger.Silent,
			elapsed: time.Hour,
			err:     errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, logs := newObservedGorm(tt.level, tt.opts...)
			called := false
			fc := func() (string, int64) {
				called = true
				return "SELECT * FROM campaigns", 3
			}

			gl.Trace(context.Background(), time.Now().Add(-tt.elapsed), fc, tt.err)

			if tt.want == "" {
				assert.Empty(t, logs.All())
				assert.False(t, called, "statement should not be rendered")
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.want, entry.Message)
			assert.Equal(t, tt.wantLvl, entry.Level)
			assert.Equal(t, "db", entry.LoggerName)
			assert.Equal(t, "SELECT * FROM campaigns", entry.ContextMap()["sql"])
			assert.Equal(t, int64(3), entry.ContextMap()["rows"])
		})
	}
}

func TestGormLogger_Trace_Fields(t *testing.T) {
	t.Run("slow statements carry the threshold", func(t *testing.T) {
		gl, logs := newObservedGorm(gormlogger.Warn, WithSlowThreshold(5*time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT 1", 1), nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, 5*time.Millisecond, logs.All()[0].ContextMap()["threshold"])
	})

	t.Run("failures carry the error", func(t *testing.T) {
		gl, logs := newObservedGorm(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), statement("INSERT INTO leads", 0), errors.New("NOT NULL constraint failed"))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "NOT NULL constraint failed", logs.All()[0].ContextMap()["error"])
	})

	t.Run("operation from context", func(t *testing.T) {
		gl, logs := newObservedGorm(gormlogger.Info)
		ctx := WithOperation(context.Background(), "store.delete")
		gl.Trace(ctx, time.Now(), statement("DELETE FROM campaign_leads WHERE campaign_id = 1", 2), nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "store.delete", logs.All()[0].ContextMap()["operation"])
	})

	t.Run("long statements are truncated", func(t *testing.T) {
		gl, logs := newObservedGorm(gormlogger.Info, WithMaxSQLLength(10))
		gl.Trace(context.Background(), time.Now(), statement(strings.Repeat("x", 50), 0), nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "xxxxxxxxxx...", logs.All()[0].ContextMap()["sql"])
	})
}

func TestGormLogger_Printf(t *testing.T) {
	gl, logs := newObservedGorm(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "hidden %d", 1)
	gl.Warn(ctx, "replacing callback %s", "gorm:create")
	gl.Error(ctx, "failed to parse %q", "x")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "replacing callback gorm:create", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, `failed to parse "x"`, entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, logs := newObservedGorm(gormlogger.Silent)

	verbose := gl.LogMode(gormlogger.Info)
	verbose.Trace(context.Background(), time.Now(), statement("SELECT 1", 1), nil)
	gl.Trace(context.Background(), time.Now(), statement("SELECT 2", 1), nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "SELECT 1", logs.All()[0].ContextMap()["sql"])
	assert.Equal(t, gormlogger.Silent, gl.level)
}

func TestMapGormLogLevel(t *testing.T) {
	for level, want := range map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"off":     gormlogger.Silent,
		"error":   gormlogger.Error,
		"fatal":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"INFO":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"verbose": gormlogger.Warn,
		"":        gormlogger.Warn,
	} {
		assert.Equal(t, want, MapGormLogLevel(level), "level %q", level)
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
