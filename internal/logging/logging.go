// Package logging builds the process zap logger and adapts it to the
// service logging interface.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qcref/internal/config"
	"qcref/internal/core"
)

// New builds a production zap logger. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

type serviceLogger struct {
	s *zap.SugaredLogger
}

// ForService adapts l to core.Logger. A nil logger yields a no-op.
func ForService(l *zap.Logger) core.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return serviceLogger{s: l.Named("service").Sugar()}
}

func (l serviceLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l serviceLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l serviceLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l serviceLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
