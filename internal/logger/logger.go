package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/selimozcann/statuspeek/internal/config"
)

// Logger wraps zap.Logger with a shared level that can be raised or lowered
// at runtime, e.g. by a -v flag after the config file was applied.
type Logger struct {
	*zap.Logger
	levels []*zap.AtomicLevel
}

// SetLevel overrides the level of every output.
func (l *Logger) SetLevel(level string) {
	lvl := parseLogLevel(level)
	for _, al := range l.levels {
		al.SetLevel(lvl)
	}
}

// New creates a zap logger from cfg. Console output goes to stderr so stdout
// stays free for results.
func New(cfg config.LogConfig) (*Logger, error) {
	globalLevel := parseLogLevel(cfg.Level)

	var cores []zapcore.Core
	var levels []*zap.AtomicLevel

	if cfg.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(cfg.Console.Level, globalLevel))
		levels = append(levels, &level)
		cores = append(cores, zapcore.NewCore(createEncoder(cfg.Console.Format), zapcore.Lock(os.Stderr), level))
	}

	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLogLevel(cfg.File.Level, globalLevel))
		levels = append(levels, &level)
		cores = append(cores, zapcore.NewCore(createEncoder(cfg.File.Format), createFileWriter(cfg.File), level))
	}

	if len(cores) == 0 {
		return &Logger{Logger: zap.NewNop()}, nil
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}
	return &Logger{Logger: zap.New(core), levels: levels}, nil
}

// parseLogLevel converts string level to zapcore.Level
func parseLogLevel(level string) zapcore.Level {
	switch level {
	case config.LogLevelDebug:
		return zap.DebugLevel
	case config.LogLevelInfo:
		return zap.InfoLevel
	case config.LogLevelWarn:
		return zap.WarnLevel
	case config.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func resolveLogLevel(outputLevel string, globalLevel zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return globalLevel
}

func createEncoder(format string) zapcore.Encoder {
	if format == config.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == config.LogFormatText {
		// no color codes in files
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func createFileWriter(cfg config.FileLogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.Rotation.MaxSize,
		MaxAge:     cfg.Rotation.MaxAge,
		MaxBackups: cfg.Rotation.MaxBackups,
		Compress:   cfg.Rotation.Compress,
	})
}
