package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "valid config with HTTP URL",
			config: Config{URL: "http://localhost:8123"},
		},
		{
			name:   "valid config with HTTPS URL",
			config: Config{URL: "https://localhost:8443"},
		},
		{
			name:        "missing URL",
			config:      Config{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.ErrorIs(t, err, ErrURLRequired)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	config := Config{URL: "http://localhost:8123"}

	config.SetDefaults()

	assert.Equal(t, 30*time.Second, config.QueryTimeout)
	assert.Equal(t, 30*time.Second, config.KeepAlive)

	config = Config{URL: "http://localhost:8123", QueryTimeout: time.Second}
	config.SetDefaults()
	assert.Equal(t, time.Second, config.QueryTimeout)
}
