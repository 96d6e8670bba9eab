package openai

import (
	"strings"
	"time"

	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/validation"
)

// DefaultAPIPrefix is the route prefix used when none is configured.
const DefaultAPIPrefix = "/v1"

// Config controls the HTTP surface of the transcription endpoint.
type Config struct {
	// APIPrefix is prepended to every route, e.g. "/v1". "/" mounts the
	// routes at the root.
	APIPrefix string `yaml:"api_prefix" mapstructure:"api_prefix"`
	// RequestTimeout bounds the wait for the first reply. Zero waits for as
	// long as the client stays connected.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// DefaultLanguage is used when a request omits the language field.
	DefaultLanguage string `yaml:"default_language" mapstructure:"default_language"`
	// StrictLanguage rejects languages outside the ISO-639-1 table.
	StrictLanguage bool `yaml:"strict_language" mapstructure:"strict_language"`
	// StreamKeepAlive is the comment interval on idle event streams.
	StreamKeepAlive time.Duration `yaml:"stream_keep_alive" mapstructure:"stream_keep_alive"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.APIPrefix == "" {
		c.APIPrefix = DefaultAPIPrefix
	}
	c.APIPrefix = "/" + strings.Trim(c.APIPrefix, "/")
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = transcription.DefaultLanguage
	}
	if c.StreamKeepAlive == 0 {
		c.StreamKeepAlive = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New().
		Custom(c.RequestTimeout >= 0, "request_timeout", "must not be negative").
		PositiveDuration("stream_keep_alive", c.StreamKeepAlive).
		Custom(!c.StrictLanguage || transcription.IsSupportedLanguage(c.DefaultLanguage),
			"default_language", "must be an ISO-639-1 code when strict_language is set").
		Err()
}

func (c *Config) requestOptions() []transcription.RequestOption {
	return []transcription.RequestOption{
		transcription.WithDefaultLanguage(c.DefaultLanguage),
		transcription.WithStrictLanguage(c.StrictLanguage),
	}
}

// MonitorConfig controls the engine state event stream.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Interval is how often the scheduler is sampled.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills unset fields.
func (c *MonitorConfig) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = 500 * time.Millisecond
	}
}

// Validate checks the configuration.
func (c *MonitorConfig) Validate() error {
	return validation.New().PositiveDuration("interval", c.Interval).Err()
}
