package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/config"
	"github.com/tinytelemetry/throwscope/internal/observability"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "throwscope",
		Short: "Classify, attribute and count runtime log output",
		Long: `throwscope reads a host runtime log, attributes exceptions to the
module that threw them, counts repeated messages and keeps an audit log.

Use the subcommands to watch a live log, summarize a finished one or query
recorded history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/throwscope/config.yml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the process log level (debug, info, warn, error)")

	root.AddCommand(
		newWatchCmd(flags),
		newReportCmd(flags),
		newHistoryCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves the effective config. A malformed file is reported and
// the defaults are used.
func loadConfig(flags *globalFlags) (*config.Loader, config.Config, error) {
	loader := config.NewLoader(flags.configPath, nil)
	cfg, err := loader.Load()
	if err != nil && !errors.Is(err, config.ErrMalformed) {
		return nil, cfg, err
	}
	loadErr := err
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	return loader, cfg, loadErr
}

// setup loads the config and opens the process logger.
func setup(flags *globalFlags) (*config.Loader, config.Config, *zap.Logger, error) {
	loader, cfg, err := loadConfig(flags)
	if loader == nil {
		return nil, cfg, nil, err
	}
	// Init falls back to stderr and logs its own open failure.
	logger, _ := observability.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logger.Warn("config file malformed, using defaults", zap.String("path", loader.Path()), zap.Error(err))
	}
	return config.NewLoader(loader.Path(), logger), cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "throwscope - runtime log classifier\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			return nil
		},
	}
}
