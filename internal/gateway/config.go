package gateway

import (
	"fmt"

	"github.com/kbukum/speechgate/config"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/openai"
	"github.com/kbukum/speechgate/scheduler"
	"github.com/kbukum/speechgate/server"
	"github.com/kbukum/speechgate/transcription/stub"
	"github.com/kbukum/speechgate/util"
)

// ServiceName names the service for config lookup, env prefixes and logs.
const ServiceName = "speechgate"

// Config is the gateway's complete configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Scheduler     scheduler.Config     `yaml:"scheduler" mapstructure:"scheduler"`
	Transcription TranscriptionConfig  `yaml:"transcription" mapstructure:"transcription"`
	Monitor       openai.MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// TranscriptionConfig selects the inference backend and tunes the HTTP
// endpoint in front of it.
type TranscriptionConfig struct {
	openai.Config `yaml:",inline" mapstructure:",squash"`

	// Backend names the registered backend every worker runs.
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Backends holds per-backend settings keyed by backend name.
	Backends map[string]map[string]any `yaml:"backends" mapstructure:"backends"`
}

// BackendConfig returns the settings of the selected backend.
func (c *TranscriptionConfig) BackendConfig() map[string]any {
	if cfg, ok := c.Backends[c.Backend]; ok && cfg != nil {
		return cfg
	}
	return map[string]any{}
}

// ApplyDefaults fills unset fields in every section.
func (c *Config) ApplyDefaults() {
	c.Name = util.Coalesce(c.Name, ServiceName)
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Scheduler.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Transcription.Backend = util.Coalesce(c.Transcription.Backend, stub.ProviderName)
	c.Monitor.ApplyDefaults()

	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"transcription", c.Transcription.Validate},
		{"monitor", c.Monitor.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
