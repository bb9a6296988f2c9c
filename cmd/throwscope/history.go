package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/config"
	"github.com/tinytelemetry/throwscope/internal/history"
	"github.com/tinytelemetry/throwscope/internal/report"
)

type historyFlags struct {
	format string
	runID  string
	since  time.Duration
	limit  int
	prune  bool
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	hf := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query records kept in the history store",
		Long: `history summarizes records written by earlier watch runs: the most
frequent messages, the modules that threw most and the recorded runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := report.ParseFormat(hf.format)
			if err != nil {
				return err
			}
			_, cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runHistory(cmd.OutOrStdout(), cfg, logger, format, hf)
		},
	}
	cmd.Flags().StringVarP(&hf.format, "format", "o", string(report.FormatTable), "output format: table, markdown, json")
	cmd.Flags().StringVar(&hf.runID, "run", "", "only records of this run")
	cmd.Flags().DurationVar(&hf.since, "since", 0, "only records newer than this (e.g. 24h)")
	cmd.Flags().IntVarP(&hf.limit, "limit", "n", 10, "rows per table")
	cmd.Flags().BoolVar(&hf.prune, "prune", false, "delete records older than history.retention-days first")
	return cmd
}

func runHistory(out io.Writer, cfg config.Config, logger *zap.Logger, format report.Format, hf *historyFlags) error {
	if _, err := os.Stat(cfg.History.DBPath); err != nil {
		return fmt.Errorf("no history at %s: %w", cfg.History.DBPath, err)
	}
	store, err := history.NewStore(cfg.History.DBPath, logger.Named("history"))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	if hf.prune && cfg.History.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(cfg.History.RetentionDays) * 24 * time.Hour)
		n, err := store.DeleteBefore(cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d records older than %s\n", n, cutoff.Format(time.DateOnly))
	}

	opts := history.QueryOpts{RunID: hf.runID}
	if hf.since > 0 {
		opts.Since = time.Now().Add(-hf.since)
	}

	var h report.History
	if h.Records, err = store.RecordCount(opts); err != nil {
		return err
	}
	if h.Messages, err = store.TopMessages(hf.limit, opts); err != nil {
		return err
	}
	if h.Modules, err = store.TopModules(hf.limit, opts); err != nil {
		return err
	}
	if hf.runID == "" {
		if h.Runs, err = store.Runs(hf.limit); err != nil {
			return err
		}
	}

	text, err := report.HistoryReport(format, h)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
