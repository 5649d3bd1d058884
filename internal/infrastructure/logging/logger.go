package logging

import (
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Init()
	Sync() error

	Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Debugf(template string, args ...any)

	Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Infof(template string, args ...any)

	Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Warnf(template string, args ...any)

	Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Errorf(template string, args ...any)

	Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Fatalf(template string, args ...any)
}

type LoggerConfig struct {
	AppName  string
	FilePath string
	Encoding string
	Level    string
	Logger   string

	// Output replaces stdout when set. Used by tests.
	Output io.Writer
}

func NewLogger(cfg *LoggerConfig) Logger {
	switch cfg.Logger {
	case "zap":
		return newZapLogger(cfg)
	case "zerolog":
		return newZeroLogger(cfg)
	}

	panic("logger not supported: supported loggers: [zap, zerolog]")
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return newZapLogger(&LoggerConfig{
		AppName:  "nop",
		Encoding: "json",
		Level:    "fatal",
		Logger:   "zap",
		Output:   io.Discard,
	})
}

func newRotatingFile(cfg *LoggerConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.FilePath, fmt.Sprintf("%s.log", cfg.Logger)),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     20, // days
		LocalTime:  true,
		Compress:   true,
	}
}
