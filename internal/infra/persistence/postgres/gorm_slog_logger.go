package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clubinex/config"
	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultGormSlowThreshold = 200 * time.Millisecond

// gormSlogLogger routes GORM output through slog. Record-not-found, unique
// violations (idempotent replays) and cancelled requests are never logged as
// failures.
type gormSlogLogger struct {
	logger        *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormSlogLogger(baseLogger *slog.Logger, cfg *config.Config) logger.Interface {
	level := logger.Warn
	if cfg != nil && cfg.Env.Debug {
		level = logger.Info
	}

	return &gormSlogLogger{
		logger:        baseLogger,
		level:         level,
		slowThreshold: defaultGormSlowThreshold,
	}
}

func (l *gormSlogLogger) LogMode(level logger.LogLevel) logger.Interface {
	cloned := *l
	cloned.level = level

	return &cloned
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, logger.Info, slog.LevelInfo, "GORM info", slog.String("message", fmt.Sprintf(msg, args...)))
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, logger.Warn, slog.LevelWarn, "GORM warn", slog.String("message", fmt.Sprintf(msg, args...)))
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, logger.Error, slog.LevelError, "GORM error", slog.String("message", fmt.Sprintf(msg, args...)))
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, sqlAndRowsFn func() (string, int64), err error) {
	if l.logger == nil || l.level == logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case l.isFailure(err) && l.level >= logger.Error:
		l.emit(ctx, logger.Error, slog.LevelError, "GORM query failed",
			append(queryAttrs(sqlAndRowsFn, elapsed), slog.String("error", err.Error()))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.emit(ctx, logger.Warn, slog.LevelWarn, "GORM slow query",
			append(queryAttrs(sqlAndRowsFn, elapsed), slog.Duration("slowThreshold", l.slowThreshold))...)
	case l.level >= logger.Info:
		l.emit(ctx, logger.Info, slog.LevelInfo, "GORM query", queryAttrs(sqlAndRowsFn, elapsed)...)
	}
}

// emit writes through the request or job scoped logger when ctx carries one.
func (l *gormSlogLogger) emit(ctx context.Context, minLevel logger.LogLevel, level slog.Level, msg string, attrs ...slog.Attr) {
	if l.logger == nil || l.level < minLevel {
		return
	}

	log := deliverycontext.GetLogger(ctx)
	if log == nil {
		log = l.logger
		if jobID := deliverycontext.GetJobIDFromContext(ctx); jobID != "" {
			attrs = append(attrs, slog.String("job_id", jobID))
		}
	}

	log.LogAttrs(ctx, level, msg, attrs...)
}

func (l *gormSlogLogger) isFailure(err error) bool {
	if err == nil {
		return false
	}

	return !errors.IsAny(err, gorm.ErrRecordNotFound, context.Canceled) && !isUniqueConstraintViolation(err)
}

func queryAttrs(sqlAndRowsFn func() (string, int64), elapsed time.Duration) []slog.Attr {
	sql, rows := sqlAndRowsFn()

	return []slog.Attr{
		slog.Duration("elapsed", elapsed),
		slog.Int64("rows", rows),
		slog.String("sql", sql),
	}
}
