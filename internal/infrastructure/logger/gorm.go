package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// Statement log messages
const (
	MsgStatement       = "SQL statement"
	MsgSlowStatement   = "SQL statement slow"
	MsgFailedStatement = "SQL statement failed"
)

const (
	defaultSlowThreshold = 200 * time.Millisecond
	defaultMaxSQLLength  = 4096
)

// GormLogger sends GORM's messages and statement traces to zap.
// Statements are logged at debug, slow ones at warn and failures at error.
type GormLogger struct {
	zl    *zap.Logger
	level gormlogger.LogLevel
	opts  gormOptions
}

type gormOptions struct {
	slow        time.Duration
	logNotFound bool
	maxSQL      int
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*gormOptions)

// WithSlowThreshold sets the duration above which a statement is reported
// as slow. Zero turns slow reporting off.
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(o *gormOptions) { o.slow = d }
}

// WithIgnoreRecordNotFoundError drops gorm.ErrRecordNotFound from the error log
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(o *gormOptions) { o.logNotFound = !ignore }
}

// WithMaxSQLLength truncates logged statements to n bytes. Zero keeps them whole.
func WithMaxSQLLength(n int) GormLoggerOption {
	return func(o *gormOptions) { o.maxSQL = n }
}

// NewGormLogger returns a gormlogger.Interface writing to a child "db" logger
func NewGormLogger(zl *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	o := gormOptions{slow: defaultSlowThreshold, maxSQL: defaultMaxSQLLength}
	for _, opt := range opts {
		opt(&o)
	}
	return &GormLogger{zl: zl.Named("db"), level: level, opts: o}
}

// LogMode returns a copy at the given level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, at gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < at {
		return
	}
	if ce := Enrich(ctx, l.zl).Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// Trace logs one executed statement. fc is only called when the entry
// will be written.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}
	ce := Enrich(ctx, l.zl).Check(lvl, msg)
	if ce == nil {
		return
	}

	stmt, rows := fc()
	fields := []zap.Field{
		zap.String("sql", l.truncate(stmt)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	switch msg {
	case MsgFailedStatement:
		fields = append(fields, zap.Error(err))
	case MsgSlowStatement:
		fields = append(fields, zap.Duration("threshold", l.opts.slow))
	}
	ce.Write(fields...)
}

func (l *GormLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	if l.level <= gormlogger.Silent {
		return 0, "", false
	}
	if err != nil && l.level >= gormlogger.Error {
		if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.opts.logNotFound {
			return 0, "", false
		}
		return zapcore.ErrorLevel, MsgFailedStatement, true
	}
	if l.opts.slow > 0 && elapsed > l.opts.slow && l.level >= gormlogger.Warn {
		return zapcore.WarnLevel, MsgSlowStatement, true
	}
	if l.level >= gormlogger.Info {
		return zapcore.DebugLevel, MsgStatement, true
	}
	return 0, "", false
}

func (l *GormLogger) truncate(stmt string) string {
	if l.opts.maxSQL <= 0 || len(stmt) <= l.opts.maxSQL {
		return stmt
	}
	return stmt[:l.opts.maxSQL] + "..."
}

// MapGormLogLevel converts an application log level name to a GORM level.
// debug and info both trace every statement; anything unknown means warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent", "off":
		return gormlogger.Silent
	case "error", "fatal":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
