package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/cohorts/pkg/ltv"
)

// CutoffLayout is the layout of weeklyCutoffDate
const CutoffLayout = "2006-01-02"

var (
	// ErrCutoffRequired is returned when no weekly cutoff date is configured
	ErrCutoffRequired = errors.New("weekly cutoff date is required")
	// ErrInvalidCutoff is returned when the weekly cutoff date cannot be parsed
	ErrInvalidCutoff = errors.New("invalid weekly cutoff date")
	// ErrDateFormatRequired is returned when no visit date layout is configured
	ErrDateFormatRequired = errors.New("at least one date format is required")
	// ErrInvalidChurnThreshold is returned when the churn threshold is not positive
	ErrInvalidChurnThreshold = ltv.ErrInvalidChurnThreshold
)

// Config holds the analytics options of a run
type Config struct {
	// DenylistedEmails are operator or internal test accounts excluded from every report
	DenylistedEmails []string `yaml:"denylistedEmails" json:"denylistedEmails"`
	// WeeklyCutoffDate (YYYY-MM-DD) is the first day admitted by the weekly report
	WeeklyCutoffDate string `yaml:"weeklyCutoffDate" json:"weeklyCutoffDate"`
	// DateFormats are Go time layouts tried in order when parsing visit dates
	DateFormats []string `yaml:"dateFormats" json:"dateFormats" default:"[\"2006-01-02T15:04:05.000-0700\",\"2006-01-02T15:04:05Z07:00\",\"2006-01-02 15:04:05\",\"2006-01-02\"]"`
	// ChurnThresholdDays converts the mean visit gap into a lifespan estimate
	ChurnThresholdDays int `yaml:"churnThresholdDays" json:"churnThresholdDays" default:"180"`
}

// Validate checks the configuration before any computation starts
func (c *Config) Validate() error {
	if c.WeeklyCutoffDate == "" {
		return ErrCutoffRequired
	}

	if _, err := c.Cutoff(); err != nil {
		return err
	}

	if len(c.DateFormats) == 0 {
		return ErrDateFormatRequired
	}

	if c.ChurnThresholdDays <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChurnThreshold, c.ChurnThresholdDays)
	}

	return nil
}

// Cutoff returns midnight UTC of the weekly cutoff date
func (c *Config) Cutoff() (time.Time, error) {
	t, err := time.Parse(CutoffLayout, c.WeeklyCutoffDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCutoff, c.WeeklyCutoffDate)
	}

	return t, nil
}
