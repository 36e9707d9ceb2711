package cmd

import (
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/cohorts/pkg/engine"
	"github.com/ethpandaops/cohorts/pkg/report"
	"github.com/ethpandaops/cohorts/pkg/source"
)

// ReportConfig is the configuration of the one-shot report command. Redis and
// the service sections are not needed.
type ReportConfig struct {
	Logging string        `yaml:"logging" default:"warn"`
	Report  report.Config `yaml:"report"`
	Source  source.Config `yaml:"source"`
}

// loadConfigFromFile decodes file on top of config's defaults. A missing file
// is an error unless optional is set.
func loadConfigFromFile[T any](file string, config *T, optional bool) error {
	if err := defaults.Set(config); err != nil {
		return err
	}

	yamlFile, err := os.ReadFile(file) //nolint:gosec // User-provided config file path
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return yaml.Unmarshal(yamlFile, config)
}

func loadEngineConfig(file string) (*engine.Config, error) {
	config := &engine.Config{}
	if err := loadConfigFromFile(file, config, false); err != nil {
		return nil, err
	}

	return config, nil
}

func loadReportConfig(file string) (*ReportConfig, error) {
	config := &ReportConfig{}
	if err := loadConfigFromFile(file, config, true); err != nil {
		return nil, err
	}

	return config, nil
}
