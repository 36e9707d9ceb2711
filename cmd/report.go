package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/cohorts/pkg/period"
	"github.com/ethpandaops/cohorts/pkg/report"
	"github.com/ethpandaops/cohorts/pkg/source"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"

	viewAll = "all"
	viewLTV = "ltv"
)

var (
	// ErrUnsupportedFormat is returned for an unknown --format
	ErrUnsupportedFormat = errors.New("unsupported format, expected json or csv")
	// ErrUnsupportedView is returned for an unknown --granularity
	ErrUnsupportedView = errors.New("unsupported granularity, expected all, monthly, weekly or ltv")
	// ErrCSVNeedsView is returned when csv output is requested for the whole bundle
	ErrCSVNeedsView = errors.New("csv output needs --granularity monthly, weekly or ltv")
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	reportInput       string
	reportFormat      string
	reportGranularity string
	reportOutput      string
	reportProgress    bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute a report once and write it to a file or stdout",
	Long: `Report reads a snapshot from the configured source (or --input CSV),
computes the monthly and weekly cohort summaries and lifetime value metrics,
and writes them as JSON or CSV. Redis is not required.`,
	Example: `  cohorts report --config report.yaml --input transactions.csv
  cohorts report --input transactions.csv --format csv --granularity weekly --output weekly.csv`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportInput, "input", "", "CSV file to read, overrides the configured source")
	reportCmd.Flags().StringVar(&reportFormat, "format", formatJSON, "output format (json, csv)")
	reportCmd.Flags().StringVar(&reportGranularity, "granularity", viewAll, "what to write (all, monthly, weekly, ltv)")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "output file (default stdout)")
	reportCmd.Flags().BoolVar(&reportProgress, "progress", true, "show a progress bar on stderr")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := prepareReport(cfgFile, reportFormat, reportGranularity)
	if err != nil {
		return err
	}

	if err := setLogLevel(cmd, config.Logging); err != nil {
		return err
	}

	if reportInput != "" {
		config.Source.Kind = source.KindCSV
		config.Source.CSV.Path = reportInput
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.New(logger, &config.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	inputs, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}

	var opts []report.Option
	if reportProgress {
		bar := newStageBar(cmd.ErrOrStderr())
		defer bar.Finish() //nolint:errcheck // best effort

		opts = append(opts, report.WithProgress(func(stage report.Stage) {
			bar.Describe(string(stage))
			_ = bar.Add(1)
		}))
	}

	bundle, err := report.Compute(ctx, inputs, config.Report, opts...)
	if err != nil {
		return err
	}

	logger.WithField("run_id", bundle.RunID).
		WithField("clean", bundle.Stats.Clean).
		WithField("raw", bundle.Stats.Raw).
		Info("Report computed")

	if reportOutput != "" {
		return writeReportFile(reportOutput, bundle, reportFormat, reportGranularity)
	}

	return writeReport(cmd.OutOrStdout(), bundle, reportFormat, reportGranularity)
}

// prepareReport checks the flags and the loaded configuration before any
// source is opened.
func prepareReport(file, format, view string) (*ReportConfig, error) {
	if err := validateReportFlags(format, view); err != nil {
		return nil, err
	}

	config, err := loadReportConfig(file)
	if err != nil {
		return nil, err
	}

	if err := config.Report.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report config: %w", err)
	}

	return config, nil
}

func validateReportFlags(format, view string) error {
	switch format {
	case formatJSON, formatCSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	switch view {
	case viewAll, viewLTV, string(period.Monthly), string(period.Weekly):
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedView, view)
	}

	if format == formatCSV && view == viewAll {
		return ErrCSVNeedsView
	}

	return nil
}

func writeReport(w io.Writer, bundle *report.Bundle, format, view string) error {
	switch view {
	case viewAll:
		return report.WriteJSON(w, bundle)
	case viewLTV:
		if format == formatCSV {
			return report.WriteMetricsCSV(w, bundle.MetricRows())
		}

		return report.WriteJSON(w, bundle.MetricRows())
	default:
		summaries, err := bundle.Summaries(period.Granularity(view))
		if err != nil {
			return err
		}

		if format == formatCSV {
			return report.WriteSummariesCSV(w, summaries)
		}

		return report.WriteJSON(w, summaries)
	}
}

func writeReportFile(path string, bundle *report.Bundle, format, view string) (err error) {
	f, err := os.Create(path) //nolint:gosec // User-provided output path
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	return writeReport(f, bundle, format, view)
}

func newStageBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(len(report.Stages),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("computing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
