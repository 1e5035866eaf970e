package main

import (
	"fmt"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ghostview",
		Short:         "Privacy-first browsing backend",
		Long:          "ghostview runs browser tabs on a server-side engine and erases what they leave behind.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("data-dir", "", "engine data directory (overrides ENGINE_DATA_DIR)")
	root.PersistentFlags().String("cache-dir", "", "engine cache directory (overrides ENGINE_CACHE_DIR)")

	root.AddCommand(
		newServeCmd(),
		newPurgeCmd(),
	)
	return root
}

// loadConfig reads the environment and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Engine.DataDir = dir
	}
	if dir, _ := cmd.Flags().GetString("cache-dir"); dir != "" {
		cfg.Engine.CacheDir = dir
	}
	return cfg, nil
}
