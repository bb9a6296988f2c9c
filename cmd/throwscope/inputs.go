package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/logsource"
)

var errNoInput = errors.New("no input: pass a log file or pipe a log into stdin")

// inputConfig defines runtime input selection.
type inputConfig struct {
	Files  []string
	Follow bool
	// Stdin is used when no files are given. Nil means os.Stdin when piped.
	Stdin io.Reader
}

func buildSources(ctx context.Context, conf inputConfig, logger *zap.Logger) ([]logsource.LogSource, error) {
	sources := make([]logsource.LogSource, 0, len(conf.Files)+1)
	for _, path := range conf.Files {
		src, err := logsource.NewFileSource(ctx, path, conf.Follow, logger.Named("file"))
		if err != nil {
			for _, s := range sources {
				s.Stop()
			}
			return nil, fmt.Errorf("open input %q: %w", path, err)
		}
		sources = append(sources, src)
	}
	if len(sources) > 0 {
		return sources, nil
	}

	switch {
	case conf.Stdin != nil:
		sources = append(sources, logsource.NewReaderSource(ctx, "stdin", conf.Stdin, logger.Named("stdin")))
	case stdinPiped():
		sources = append(sources, logsource.NewStdinSource(ctx, logger.Named("stdin")))
	default:
		return nil, errNoInput
	}
	return sources, nil
}

func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func stdoutIsTerminal() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func sourceNames(sources []logsource.LogSource) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	return names
}

func isOSStdin(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && f == os.Stdin
}
