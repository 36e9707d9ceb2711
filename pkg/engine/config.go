// Package engine wires the report pipeline to its sources, publication store,
// refresh queue, scheduler and API.
package engine

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/cohorts/pkg/api"
	"github.com/ethpandaops/cohorts/pkg/redis"
	"github.com/ethpandaops/cohorts/pkg/refresh"
	"github.com/ethpandaops/cohorts/pkg/report"
	"github.com/ethpandaops/cohorts/pkg/scheduler"
	"github.com/ethpandaops/cohorts/pkg/source"
	"github.com/ethpandaops/cohorts/pkg/store"
)

// ErrInvalidLogLevel is returned when logging is not a logrus level
var ErrInvalidLogLevel = errors.New("invalid logging level")

// Config represents the complete engine configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`
	RefreshOnStart  bool   `yaml:"refreshOnStart" default:"true"`

	// Dependencies
	Redis  redis.Config  `yaml:"redis"`
	Source source.Config `yaml:"source"`
	Store  store.Config  `yaml:"store"`

	// Report options
	Report report.Config `yaml:"report"`

	// Refresh task and worker settings
	Refresh refresh.Config `yaml:"refresh"`

	Scheduler scheduler.Config `yaml:"scheduler"`

	API api.Config `yaml:"api"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Logging {
	case "panic", "fatal", "error", "warn", "info", "debug", "trace":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging)
	}

	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := c.Refresh.Validate(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	return c.API.Validate()
}
