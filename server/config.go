package server

import (
	"github.com/kbukum/speechgate/server/middleware"
	"github.com/kbukum/speechgate/util"
	"github.com/kbukum/speechgate/validation"
)

// DefaultMaxBodySize accommodates long uploads; the multipart parser
// buffers the whole audio file in memory.
const DefaultMaxBodySize = "200MB"

// Config holds HTTP server configuration.
type Config struct {
	Host         string                     `yaml:"host" mapstructure:"host"`
	Port         int                        `yaml:"port" mapstructure:"port" validate:"min=0,max=65535"`
	ReadTimeout  int                        `yaml:"read_timeout" mapstructure:"read_timeout" validate:"min=0"`   // seconds
	WriteTimeout int                        `yaml:"write_timeout" mapstructure:"write_timeout" validate:"min=0"` // seconds, 0 disables
	IdleTimeout  int                        `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"min=0"`   // seconds
	MaxBodySize  string                     `yaml:"max_body_size" mapstructure:"max_body_size"`                  // e.g. "200MB"
	CORS         middleware.CORSConfig      `yaml:"cors" mapstructure:"cors"`
	RateLimit    middleware.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID}
	}
	c.RateLimit.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New()
	if _, err := util.ParseSizeStrict(c.MaxBodySize); err != nil {
		v.AddError("server.max_body_size", err.Error())
	}
	if c.RateLimit.Enabled {
		v.Custom(c.RateLimit.RequestsPerSecond > 0, "server.rate_limit.requests_per_second", "must be positive when rate limiting is enabled")
	}
	return v.Err()
}

// BodyLimit returns MaxBodySize in bytes.
func (c *Config) BodyLimit() int64 {
	return util.ParseSize(c.MaxBodySize, 200*util.MB)
}
