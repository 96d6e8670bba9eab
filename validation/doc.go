// Package validation provides configuration and input validation helpers.
//
// It supports struct tag validation (using go-playground/validator) and
// programmatic validation with error collection. Both produce an
// *errors.AppError with code INVALID_INPUT and a "fields" detail.
//
// # Struct Tag Validation
//
//	type SchedulerConfig struct {
//	    Workers int `mapstructure:"workers" validate:"min=1"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	err := validation.New().
//	    FloatRange("sample_rate", rate, 0, 1).
//	    Err()
package validation
