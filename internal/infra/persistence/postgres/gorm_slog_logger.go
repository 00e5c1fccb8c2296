package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"hotspot/config"
	"hotspot/internal/domain/entity"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// tableKeywords precede the table name in the statements the repositories issue.
var tableKeywords = []string{"from", "into", "update", "join"}

// storeLogger bridges gorm to slog. Statements on a mirrored relation carry a relation attribute.
type storeLogger struct {
	logger        *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormSlogLogger(baseLogger *slog.Logger, cfg *config.Config) logger.Interface {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	level := logger.Warn
	slowThreshold := defaultSlowThreshold
	if cfg != nil {
		level = parseLogLevel(cfg.Store.LogLevel)
		if cfg.Store.SlowQueryThreshold > 0 {
			slowThreshold = cfg.Store.SlowQueryThreshold
		}
		if cfg.Env.Debug {
			level = logger.Info
		}
	}

	return &storeLogger{
		logger:        baseLogger.With(slog.String("component", "remote_store")),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

const defaultSlowThreshold = 200 * time.Millisecond

func parseLogLevel(name string) logger.LogLevel {
	switch strings.ToLower(name) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (l *storeLogger) LogMode(level logger.LogLevel) logger.Interface {
	cloned := *l
	cloned.level = level

	return &cloned
}

func (l *storeLogger) Info(ctx context.Context, msg string, args ...any) {
	l.message(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *storeLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.message(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *storeLogger) Error(ctx context.Context, msg string, args ...any) {
	l.message(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *storeLogger) message(ctx context.Context, threshold logger.LogLevel, level slog.Level, msg string, args []any) {
	if l.level < threshold {
		return
	}

	l.logger.LogAttrs(ctx, level, "Remote store message", slog.String("message", fmt.Sprintf(msg, args...)))
}

// Trace logs failed and slow statements, and every statement at info level.
// Missing rows log at debug and unique violations, which the repositories translate, at warn.
func (l *storeLogger) Trace(ctx context.Context, begin time.Time, sqlAndRowsFn func() (string, int64), err error) {
	if l.level == logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		if l.level >= logger.Info {
			l.logger.LogAttrs(ctx, slog.LevelDebug, "Remote store row not found", l.statementAttrs(sqlAndRowsFn, elapsed)...)
		}
	case err != nil && isUniqueConstraintViolation(err):
		if l.level >= logger.Warn {
			attrs := append(l.statementAttrs(sqlAndRowsFn, elapsed), slog.String("error", err.Error()))
			l.logger.LogAttrs(ctx, slog.LevelWarn, "Remote store constraint rejected statement", attrs...)
		}
	case err != nil:
		if l.level >= logger.Error {
			attrs := append(l.statementAttrs(sqlAndRowsFn, elapsed), slog.String("error", err.Error()))
			l.logger.LogAttrs(ctx, slog.LevelError, "Remote store statement failed", attrs...)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		attrs := append(l.statementAttrs(sqlAndRowsFn, elapsed), slog.Duration("slow_threshold", l.slowThreshold))
		l.logger.LogAttrs(ctx, slog.LevelWarn, "Remote store slow statement", attrs...)
	case l.level >= logger.Info:
		l.logger.LogAttrs(ctx, slog.LevelInfo, "Remote store statement", l.statementAttrs(sqlAndRowsFn, elapsed)...)
	}
}

func (l *storeLogger) statementAttrs(sqlAndRowsFn func() (string, int64), elapsed time.Duration) []slog.Attr {
	sql, rows := sqlAndRowsFn()
	attrs := []slog.Attr{
		slog.Duration("elapsed", elapsed),
		slog.Int64("rows", rows),
		slog.String("sql", sql),
	}
	if relation, ok := relationOf(sql); ok {
		attrs = append(attrs, slog.String("relation", string(relation)))
	}

	return attrs
}

// relationOf finds the first mirrored relation a statement names.
func relationOf(sql string) (entity.Kind, bool) {
	fields := strings.Fields(sql)
	for i := 0; i+1 < len(fields); i++ {
		if !slices.Contains(tableKeywords, strings.ToLower(fields[i])) {
			continue
		}
		name := strings.Trim(fields[i+1], "\"`(),;")
		if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
			name = strings.Trim(name[dot+1:], "\"`")
		}
		if kind, ok := entity.ParseKind(name); ok {
			return kind, true
		}
	}

	return "", false
}
