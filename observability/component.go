package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/speechgate/component"
)

// Telemetry is a component owning the tracer and meter providers. Disabled
// signals leave the otel global no-op providers in place.
type Telemetry struct {
	cfg Config
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
}

var (
	_ component.Component   = (*Telemetry)(nil)
	_ component.Describable = (*Telemetry)(nil)
)

// NewTelemetry creates a Telemetry component.
func NewTelemetry(cfg Config) *Telemetry {
	return &Telemetry{cfg: cfg}
}

func (t *Telemetry) Name() string { return "telemetry" }

// Start installs the enabled providers.
func (t *Telemetry) Start(ctx context.Context) error {
	if t.cfg.TracingEnabled {
		tp, err := InitTracer(ctx, t.cfg.tracerConfig())
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		t.tp = tp
	}
	if t.cfg.MetricsEnabled {
		mp, err := InitMeter(ctx, t.cfg.meterConfig())
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		t.mp = mp
	}
	return nil
}

// Stop flushes and shuts down the providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) Health(context.Context) component.Health {
	return component.Health{Name: t.Name(), Status: component.StatusHealthy}
}

func (t *Telemetry) Describe() component.Description {
	details := "disabled"
	switch {
	case t.cfg.TracingEnabled && t.cfg.MetricsEnabled:
		details = "traces+metrics -> " + t.cfg.Endpoint
	case t.cfg.TracingEnabled:
		details = "traces -> " + t.cfg.Endpoint
	case t.cfg.MetricsEnabled:
		details = "metrics -> " + t.cfg.Endpoint
	}
	return component.Description{Name: "OpenTelemetry", Type: "telemetry", Details: details}
}
