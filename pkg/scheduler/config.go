// Package scheduler enqueues report refreshes on a cron schedule
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrScheduleRequired is returned when the scheduler is enabled without a schedule
	ErrScheduleRequired = errors.New("schedule is required")
	// ErrInvalidSchedule is returned when the schedule is not a valid cron expression
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Config defines scheduler configuration
type Config struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Schedule        string        `yaml:"schedule" default:"@every 1h"`
	LeaderKey       string        `yaml:"leaderKey" default:"scheduler:leader"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Schedule == "" {
		return ErrScheduleRequired
	}

	if _, err := parser.Parse(c.Schedule); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, c.Schedule, err)
	}

	return nil
}

// parser accepts standard five field expressions and descriptors such as @every
//
//nolint:gochecknoglobals // stateless parser
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Next returns the first scheduled time after t
func (c *Config) Next(t time.Time) (time.Time, error) {
	sched, err := parser.Parse(c.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, c.Schedule, err)
	}

	return sched.Next(t), nil
}
