// Package logger constructs the zap loggers used by the statistics daemon
// and tools.
package logger

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a console logger writing to w at debug level, for tests run
// verbose and other places that need a logger without a Config.
func New(w io.Writer) *zap.Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(config),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	))
}

// New builds a logger from the configuration. fallback receives log output
// when no log file is configured, typically os.Stderr.
func (c Config) New(fallback io.Writer) (*zap.Logger, error) {
	w := zapcore.AddSync(fallback)
	if c.File != "" {
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.maxSizeMB(),
			MaxBackups: c.MaxBackups,
		})
	}

	encConfig := zap.NewProductionEncoderConfig()
	encConfig.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	encConfig.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	var enc zapcore.Encoder
	switch c.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encConfig)
	case "console", "auto", "":
		enc = zapcore.NewConsoleEncoder(encConfig)
	default:
		return nil, fmt.Errorf("unknown logging format: %s", c.Format)
	}

	return zap.New(zapcore.NewCore(enc, zapcore.Lock(w), c.Level)), nil
}

// DurationLiteral represents a duration as a string zap field, so intervals
// read as "5s" rather than nanosecond counts.
func DurationLiteral(key string, val time.Duration) zap.Field {
	return zap.String(key, val.String())
}
