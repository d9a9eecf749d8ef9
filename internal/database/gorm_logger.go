package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	sqlLogLimit   = 200
	slowStatement = 500 * time.Millisecond
)

// gormLogger forwards GORM messages to slog. Statements log at Debug,
// slow ones at Warn and failures at Error.
type gormLogger struct {
	logger *slog.Logger
}

func newGormLogger(logger *slog.Logger) gormLogger {
	return gormLogger{logger: logger.With(slog.String("component", "database"))}
}

func (g gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g gormLogger) Info(ctx context.Context, format string, args ...any) {
	g.logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (g gormLogger) Warn(ctx context.Context, format string, args ...any) {
	g.logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

func (g gormLogger) Error(ctx context.Context, format string, args ...any) {
	g.logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
}

func (g gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	took := time.Since(begin)
	level := slog.LevelDebug
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		level = slog.LevelError
	case took >= slowStatement:
		level = slog.LevelWarn
	}
	if !g.logger.Enabled(ctx, level) {
		return
	}
	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", clipSQL(sql)),
		slog.Int64("rows", rows),
		slog.Duration("took", took),
	}
	if level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.logger.LogAttrs(ctx, level, "sql statement", attrs...)
}

// clipSQL keeps both ends of a long statement.
func clipSQL(sql string) string {
	if len(sql) <= sqlLogLimit {
		return sql
	}
	keep := (sqlLogLimit - 3) / 2
	return sql[:keep] + "..." + sql[len(sql)-keep:]
}
