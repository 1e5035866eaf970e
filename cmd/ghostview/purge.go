package main

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/fsutil"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/logging"
	"github.com/spf13/cobra"
)

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete engine data and cache directories",
		Long:  "Remove the engine data directory and empty the cache directory, the same sweep a closing tab schedules.",
		RunE:  runPurge,
	}
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	defer func() { _ = logger.Sync() }()
	sweeper := fsutil.NewSweeper(logger.Component("sweep"))

	data, _ := fsutil.Measure(cfg.Engine.DataDir)
	cache, _ := fsutil.Measure(cfg.Engine.CacheDir)

	err = errors.Join(
		sweeper.DeleteDirectory(cfg.Engine.DataDir),
		sweeper.TruncateDirectory(cfg.Engine.CacheDir),
	)
	if err != nil {
		return fmt.Errorf("purging: %w", err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files (%d bytes)\n",
		data.Files+cache.Files, data.Bytes+cache.Bytes)
	return err
}
