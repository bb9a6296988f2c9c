package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/throwscope/internal/config"
	"github.com/tinytelemetry/throwscope/internal/logsource"
	"github.com/tinytelemetry/throwscope/internal/report"
	"github.com/tinytelemetry/throwscope/internal/tui"
)

const defaultPrintInterval = 5 * time.Second

type watchFlags struct {
	files         []string
	follow        bool
	noTUI         bool
	printInterval time.Duration
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	wf := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch [file...]",
		Short: "Classify a live log and show the throw rate and top issues",
		Long: `watch reads log lines from the given files (or stdin), writes the audit
log and shows a live view of throws per second, the top repeated issues and
the methods that threw most.

The config file is watched and pass rules and emission settings are applied
without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf.files = append(wf.files, args...)
			return runWatch(cmd, flags, wf)
		},
	}
	cmd.Flags().StringArrayVarP(&wf.files, "file", "f", nil, "log file to read (repeatable)")
	cmd.Flags().BoolVar(&wf.follow, "follow", true, "keep reading files as they grow")
	cmd.Flags().BoolVar(&wf.noTUI, "no-tui", false, "print periodic text reports instead of the live view")
	cmd.Flags().DurationVar(&wf.printInterval, "print-interval", defaultPrintInterval, "report interval with --no-tui")
	return cmd
}

func runWatch(cmd *cobra.Command, flags *globalFlags, wf *watchFlags) error {
	loader, cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := newPipeline(cfg, logger, pipelineOptions{audit: true, history: true})
	if err != nil {
		return err
	}
	defer p.Close()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	sources, err := buildSources(ctx, inputConfig{Files: wf.files, Follow: wf.follow}, logger)
	if err != nil {
		return err
	}
	mux := logsource.NewMultiplexer(ctx, sources, 0, logger.Named("mux"))
	mux.Start()
	defer mux.Stop()

	if loader.Watch(func(next config.Config) { p.Reload(next) }) {
		logger.Info("watching config", zap.String("path", loader.Path()))
	}

	useTUI := !wf.noTUI && stdoutIsTerminal()
	if !useTUI {
		printStartupBanner(cmd.ErrOrStderr(), cfg, p, sourceNames(sources))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.processor.Run(gctx, mux.Lines())
		if !useTUI {
			// Input exhausted: stop the printer too.
			cancel()
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if useTUI {
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, tui.New(p.producer, tui.Options{
				Window:          cfg.Window,
				TopN:            cfg.TopN,
				RefreshInterval: cfg.RefreshInterval,
				Title:           strings.Join(sourceNames(sources), ", "),
			}))
		})
	} else {
		g.Go(func() error {
			return printLoop(gctx, cmd.OutOrStdout(), p, cfg, wf.printInterval)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if !useTUI {
		return printSnapshot(cmd.OutOrStdout(), p, cfg)
	}
	return nil
}

func printLoop(ctx context.Context, out io.Writer, p *pipeline, cfg config.Config, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPrintInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printSnapshot(out, p, cfg); err != nil {
				return err
			}
		}
	}
}

func printSnapshot(out io.Writer, p *pipeline, cfg config.Config) error {
	text, err := report.Snapshot(report.FormatText, p.producer.Snapshot(cfg.Window, cfg.TopN))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
