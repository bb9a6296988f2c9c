package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/config"
	"github.com/tinytelemetry/throwscope/internal/logsource"
	"github.com/tinytelemetry/throwscope/internal/report"
)

type reportFlags struct {
	format  string
	topN    int
	audit   bool
	history bool
}

func newReportCmd(flags *globalFlags) *cobra.Command {
	rf := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report [file...]",
		Short: "Classify a finished log and print a summary",
		Long: `report reads the given log files (or stdin) to the end and prints the
top issues and the methods that threw, as a table, text, markdown or JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(rf.format)
			if err != nil {
				return err
			}
			_, cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if rf.topN > 0 {
				cfg.TopN = rf.topN
			}
			return summarize(cmd.Context(), cmd.OutOrStdout(), cfg, logger, format,
				inputConfig{Files: args, Stdin: stdinOverride(cmd)},
				pipelineOptions{audit: rf.audit, history: rf.history})
		},
	}
	cmd.Flags().StringVarP(&rf.format, "format", "o", string(report.FormatTable), "output format: table, text, markdown, json")
	cmd.Flags().IntVarP(&rf.topN, "top", "n", 0, "number of top issues (default from config)")
	cmd.Flags().BoolVar(&rf.audit, "audit", false, "also write the audit log")
	cmd.Flags().BoolVar(&rf.history, "history", false, "also record into the history store when enabled")
	return cmd
}

// stdinOverride returns the command input when a caller replaced it.
func stdinOverride(cmd *cobra.Command) io.Reader {
	if in := cmd.InOrStdin(); !isOSStdin(in) {
		return in
	}
	return nil
}

func summarize(ctx context.Context, out io.Writer, cfg config.Config, logger *zap.Logger, format report.Format, in inputConfig, opts pipelineOptions) error {
	p, err := newPipeline(cfg, logger, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	in.Follow = false
	sources, err := buildSources(ctx, in, logger)
	if err != nil {
		return err
	}
	mux := logsource.NewMultiplexer(ctx, sources, 0, logger.Named("mux"))
	mux.Start()
	defer mux.Stop()

	if err := p.processor.Run(ctx, mux.Lines()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	text, err := report.Snapshot(format, p.producer.Snapshot(cfg.Window, cfg.TopN))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
