package scheduler

import (
	"github.com/kbukum/speechgate/validation"
)

// Config sizes the worker pool and the queue in front of it.
type Config struct {
	// Workers is the number of concurrent handlers.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// Capacity bounds the queue. Zero means unbounded.
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = 1
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New().
		Min("scheduler.workers", c.Workers, 1).
		Min("scheduler.capacity", c.Capacity, 0).
		Err()
}

// Options returns the scheduler options this configuration implies.
func (c *Config) Options() []Option {
	return []Option{WithCapacity(c.Capacity)}
}

