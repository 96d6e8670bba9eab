package validation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/speechgate/errors"
)

func TestValidator_NoErrors(t *testing.T) {
	v := New().
		Required("url", "http://localhost:9000").
		Range("workers", 4, 1, 64).
		FloatRange("temperature", 0.5, 0, 1).
		Min("capacity", 0, 0).
		PositiveDuration("timeout", time.Second).
		OneOf("backend", "stub", []string{"stub", "whisper"}).
		Custom(true, "x", "never")
	if v.HasErrors() {
		t.Fatalf("expected no errors, got %v", v.Errors())
	}
	if v.Validate() != nil || v.Err() != nil {
		t.Error("expected nil results")
	}
}

func TestValidator_CollectsAll(t *testing.T) {
	v := New().
		Required("url", " ").
		Range("workers", 0, 1, 64).
		FloatRange("sample_rate", 1.5, 0, 1).
		PositiveDuration("timeout", 0).
		OneOf("backend", "gpu", []string{"stub", "whisper"})

	if len(v.Errors()) != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", len(v.Errors()), v.Errors())
	}
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "sample_rate: must be between 0 and 1") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	if _, ok := appErr.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}

func TestValidator_FloatRangeRejectsNaN(t *testing.T) {
	v := New().FloatRange("temperature", math.NaN(), 0, 1)
	if !v.HasErrors() {
		t.Fatal("NaN should be out of range")
	}
	if err := v.Err(); err == nil || !strings.Contains(err.Error(), "temperature") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestValidator_OneOfEmptySkipped(t *testing.T) {
	if New().OneOf("backend", "", []string{"stub"}).HasErrors() {
		t.Error("empty value should be skipped")
	}
}

type schedulerConfig struct {
	Workers  int    `mapstructure:"workers" validate:"min=1"`
	Capacity int    `mapstructure:"capacity" validate:"gte=0"`
	Backend  string `mapstructure:"backend" validate:"required,oneof=stub whisper"`
}

type rootConfig struct {
	Scheduler schedulerConfig `mapstructure:"scheduler"`
	URL       string          `yaml:"url" validate:"omitempty,url"`
}

func TestValidate_Struct(t *testing.T) {
	ok := rootConfig{Scheduler: schedulerConfig{Workers: 1, Backend: "stub"}}
	if err := Validate(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := rootConfig{
		Scheduler: schedulerConfig{Workers: 0, Capacity: -1, Backend: "gpu"},
		URL:       "not a url",
	}
	err := Validate(bad)
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok2 := errors.AsAppError(err)
	if !ok2 {
		t.Fatalf("expected AppError, got %T", err)
	}
	for _, want := range []string{
		"scheduler.workers: must be at least 1",
		"scheduler.capacity: must be at least 0",
		"scheduler.backend: must be one of: stub whisper",
		"url: must be a valid URL",
	} {
		if !strings.Contains(appErr.Message, want) {
			t.Errorf("message %q missing %q", appErr.Message, want)
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("MaxInFlight"); got != "max_in_flight" {
		t.Errorf("got %q", got)
	}
}
