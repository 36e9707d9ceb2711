package refresh

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrQueueRequired is returned when no queue name is configured
	ErrQueueRequired = errors.New("queue name is required")
	// ErrInvalidTimeout is returned when the task timeout is not positive
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

// Config contains refresh task settings
type Config struct {
	Queue           string        `yaml:"queue" default:"refresh"`
	Concurrency     int           `yaml:"concurrency" default:"1"`
	MaxRetry        int           `yaml:"maxRetry" default:"3"`
	Timeout         time.Duration `yaml:"timeout" default:"10m"`
	UniqueTTL       time.Duration `yaml:"uniqueTTL" default:"15m"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"30s"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Queue == "" {
		return ErrQueueRequired
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	return nil
}
