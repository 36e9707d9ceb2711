package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/cohorts/pkg/engine"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report service",
	Long: `Serve keeps the latest report published in Redis. Refreshes run on the
configured schedule, at startup, and on POST /api/v1/refresh.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true

	config, err := loadEngineConfig(cfgFile)
	if err != nil {
		return err
	}

	if err := setLogLevel(cmd, config.Logging); err != nil {
		return err
	}

	logger.WithField("config", cfgFile).Info("Configuration loaded")

	app, err := engine.NewService(logger, config)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		_ = app.Stop()
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cancel()

	// Graceful shutdown
	return app.Stop()
}
