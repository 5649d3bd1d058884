package logging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var gormLogLevelMapping = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

// GormLogger routes GORM's statement logging through a Logger.
type GormLogger struct {
	logger        Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(logger Logger, level string, slowThreshold time.Duration) *GormLogger {
	lvl, ok := gormLogLevelMapping[level]
	if !ok {
		lvl = gormlogger.Warn
	}

	return &GormLogger{
		logger:        logger,
		level:         lvl,
		slowThreshold: slowThreshold,
	}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		g.logger.Info(Database, Query, fmt.Sprintf(msg, data...), nil)
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		g.logger.Warn(Database, Query, fmt.Sprintf(msg, data...), nil)
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		g.logger.Error(Database, Query, fmt.Sprintf(msg, data...), nil)
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	extra := map[ExtraKey]any{
		SQL:          sql,
		RowsAffected: rows,
		Latency:      elapsed.String(),
	}

	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		extra[ErrorMessage] = err.Error()
		g.logger.Error(Database, Query, "query failed", extra)
	case g.slowThreshold != 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		g.logger.Warn(Database, Query, "slow query", extra)
	case g.level >= gormlogger.Info:
		g.logger.Debug(Database, Query, "query executed", extra)
	}
}
