// Package source fetches transaction snapshots from upstream systems and
// converts them into input records.
package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/cohorts/pkg/clickhouse"
)

// Kind selects a source implementation
type Kind string

const (
	// KindCSV reads a CSV export from disk
	KindCSV Kind = "csv"
	// KindClickHouse queries ClickHouse over HTTP
	KindClickHouse Kind = "clickhouse"
	// KindSQL queries Postgres or MySQL/MariaDB through database/sql
	KindSQL Kind = "sql"
)

const sinceLayout = "2006-01-02"

var (
	// ErrUnknownKind is returned for an unsupported source kind
	ErrUnknownKind = errors.New("unknown source kind")
	// ErrPathRequired is returned when the csv source has no path
	ErrPathRequired = errors.New("csv path is required")
	// ErrQueryRequired is returned when a query source has no query
	ErrQueryRequired = errors.New("query is required")
	// ErrDSNRequired is returned when the sql source has no DSN
	ErrDSNRequired = errors.New("sql dsn is required")
	// ErrUnsupportedDSN is returned when the DSN scheme is not recognised
	ErrUnsupportedDSN = errors.New("unsupported dsn scheme")
	// ErrInvalidSince is returned when since is not a YYYY-MM-DD date
	ErrInvalidSince = errors.New("invalid since date")
	// ErrMissingColumn is returned when a required column is absent from the result set
	ErrMissingColumn = errors.New("missing required column")
)

// Config selects and configures the upstream source
type Config struct {
	Kind Kind `yaml:"kind" default:"csv"`
	// Since (YYYY-MM-DD) is exposed to query templates as the lower bound of the snapshot
	Since string `yaml:"since"`

	CSV        CSVConfig        `yaml:"csv"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	SQL        SQLConfig        `yaml:"sql"`
}

// CSVConfig configures the csv source
type CSVConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter" default:","`
}

// ClickHouseConfig configures the clickhouse source
type ClickHouseConfig struct {
	clickhouse.Config `yaml:",inline"`

	Query string `yaml:"query"`
}

// SQLConfig configures the sql source
type SQLConfig struct {
	DSN          string `yaml:"dsn"`
	Query        string `yaml:"query"`
	MaxOpenConns int    `yaml:"maxOpenConns" default:"4"`
}

// Validate validates the source configuration
func (c *Config) Validate() error {
	if _, err := c.SinceTime(); err != nil {
		return err
	}

	switch c.Kind {
	case KindCSV:
		if c.CSV.Path == "" {
			return ErrPathRequired
		}
	case KindClickHouse:
		if err := c.ClickHouse.Validate(); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}

		if c.ClickHouse.Query == "" {
			return fmt.Errorf("clickhouse: %w", ErrQueryRequired)
		}
	case KindSQL:
		if c.SQL.DSN == "" {
			return ErrDSNRequired
		}

		if c.SQL.Query == "" {
			return fmt.Errorf("sql: %w", ErrQueryRequired)
		}

		if _, _, err := driverFor(c.SQL.DSN); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}

	return nil
}

// SinceTime returns the configured lower bound, or the zero time when unset
func (c *Config) SinceTime() (time.Time, error) {
	if c.Since == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(sinceLayout, c.Since)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSince, c.Since)
	}

	return t, nil
}
