package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tab API",
		Long:  "Open the engine profile, start the HTTP and websocket API, and save every tab on shutdown.",
		RunE:  runServe,
	}

	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	cmd.Flags().Bool("dev", false, "development logging at debug level")
	cmd.Flags().Bool("no-javascript", false, "disable the script sandbox")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if dev, _ := cmd.Flags().GetBool("dev"); dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if off, _ := cmd.Flags().GetBool("no-javascript"); off {
		cfg.Engine.SandboxPool = 0
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if err := srv.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
