// Package observability builds the process logger.
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a config level name to a zap level. Unknown names are info.
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Init builds a JSON logger writing to path. When path is empty or cannot be
// opened the logger writes to stderr and the open error is returned alongside
// it, so callers always get a usable logger.
func Init(level, path string) (*zap.Logger, error) {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		ws      zapcore.WriteSyncer
		openErr error
	)
	if strings.TrimSpace(path) != "" {
		ws, openErr = openLogFile(path)
	}
	if ws == nil {
		ws = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, zap.NewAtomicLevelAt(ParseLevel(level)))
	logger := zap.New(core, zap.AddCaller())
	if openErr != nil {
		logger.Warn("observability: log file unavailable, using stderr", zap.String("path", path), zap.Error(openErr))
	}
	return logger, openErr
}

func openLogFile(path string) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("observability: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("observability: open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}
