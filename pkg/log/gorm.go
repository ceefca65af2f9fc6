package log

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM's logging through zerolog. SQL statements are
// emitted at trace level, slow queries at warn, failures at error.
// gorm.ErrRecordNotFound is never reported as a failure.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a GORM logger for the given level name
// ("silent", "error", "warn", "info").
func NewGormLogger(level string, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{level: parseGormLevel(level), slowThreshold: slowThreshold}
}

func parseGormLevel(s string) gormlogger.LogLevel {
	switch s {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		l := Ctx(ctx)
		l.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		l := Ctx(ctx)
		l.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		l := Ctx(ctx)
		l.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	l := Ctx(ctx)

	var evt *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		evt = l.Error().Err(err)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		evt = l.Warn().Str("slow_threshold", g.slowThreshold.String())
	case g.level >= gormlogger.Info:
		evt = l.Trace()
	default:
		return
	}

	sql, rows := fc()
	evt.Str(FieldSQL, sql).
		Int64(FieldRows, rows).
		Float64(FieldLatency, float64(elapsed.Milliseconds())).
		Msg("gorm query")
}
