// Package logsource produces raw log lines from stdin and files.
package logsource

import "github.com/tinytelemetry/throwscope/internal/model"

// LogSource is a unified interface for all log input sources.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of log lines
	Stop()                              // graceful shutdown
	Name() string                       // "stdin" or the file path
}

const (
	// DefaultBuffer is the default channel buffer size for source lines.
	DefaultBuffer = 50_000

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// Config holds tunable parameters shared by all sources.
type Config struct {
	BufferSize  int
	MaxLineSize int
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBuffer
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultMaxLineSize
	}
	return c
}
