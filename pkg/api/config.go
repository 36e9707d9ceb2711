// Package api exposes the published report bundle and the refresh trigger over REST.
package api

import "errors"

// ErrAPIAddrRequired is returned when API is enabled but no address is configured
var (
	ErrAPIAddrRequired = errors.New("api address is required when API is enabled")
)

// Config represents API service configuration
type Config struct {
	Enabled     bool     `yaml:"enabled" default:"true"`
	Addr        string   `yaml:"addr" default:":8080"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// Validate validates the API configuration
func (c *Config) Validate() error {
	if c.Enabled && c.Addr == "" {
		return ErrAPIAddrRequired
	}
	return nil
}

func (c *Config) allowOrigins() []string {
	if len(c.CORSOrigins) == 0 {
		return []string{"*"}
	}

	return c.CORSOrigins
}
