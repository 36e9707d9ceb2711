// Package cmd contains the CLI commands for cohorts
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile string
	logger  *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "cohorts",
	Short: "Customer cohort and revenue attribution reports",
	Long: `cohorts computes monthly and weekly new/returning customer reports,
revenue attribution and lifetime value metrics from a transaction log. Run it
once with "report" or as a long-lived service with "serve".`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level, overrides the config file (debug, info, warn, error, fatal, panic)")

	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func initLogger() {
	if cfgFile == "" {
		cfgFile = "./config.yaml"
	}
}

// setLogLevel applies the --log-level flag, falling back to the configured level
func setLogLevel(cmd *cobra.Command, configured string) error {
	level := configured

	if flag, err := cmd.Flags().GetString("log-level"); err == nil && flag != "" {
		level = flag
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger.SetLevel(parsed)

	return nil
}
