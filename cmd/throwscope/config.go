package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/throwscope/internal/config"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newConfigInitCmd(flags), newConfigPathCmd(flags))
	return cmd
}

func newConfigInitCmd(flags *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective config to the config file",
		Long: `Write the effective config (defaults, environment overrides and
--log-level) to the config file so it can be edited by hand. An existing
file is left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, cfg, err := loadConfig(flags)
			if loader == nil {
				return err
			}
			path := loader.Path()
			if _, statErr := os.Stat(path); statErr == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			} else if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
				return fmt.Errorf("stat config file: %w", statErr)
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newConfigPathCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.NewLoader(flags.configPath, nil).Path())
			return nil
		},
	}
}
