package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/records"
)

// ErrInvalidDelimiter is returned when the csv delimiter is not a single character
var ErrInvalidDelimiter = errors.New("csv delimiter must be a single character")

// CSVSource reads a CSV export with a header row
type CSVSource struct {
	log logrus.FieldLogger
	cfg CSVConfig
}

// NewCSVSource creates a csv source
func NewCSVSource(log logrus.FieldLogger, cfg CSVConfig) *CSVSource {
	return &CSVSource{
		log: log.WithField("source", string(KindCSV)),
		cfg: cfg,
	}
}

// Name implements Source
func (s *CSVSource) Name() string {
	return string(KindCSV)
}

// Fetch implements Source
func (s *CSVSource) Fetch(ctx context.Context) ([]records.InputRecord, error) {
	file, err := os.Open(s.cfg.Path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.log.WithError(closeErr).Debug("Failed to close csv file")
		}
	}()

	out, err := ReadCSV(ctx, file, s.cfg.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Path, err)
	}

	s.log.WithField("rows", len(out)).Debug("Read csv snapshot")

	return out, nil
}

// Close implements Source
func (s *CSVSource) Close() error {
	return nil
}

// ReadCSV decodes records from r. The first row is the header; columns are
// matched by name regardless of case, spacing, underscores or dashes.
func ReadCSV(ctx context.Context, r io.Reader, delimiter string) ([]records.InputRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if delimiter != "" {
		comma, size := utf8.DecodeRuneInString(delimiter)
		if size != len(delimiter) {
			return nil, ErrInvalidDelimiter
		}

		reader.Comma = comma
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	out := make([]records.InputRecord, 0)

	for line := 2; ; line++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out = append(out, cols.record(values))
	}

	return out, nil
}
