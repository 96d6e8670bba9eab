package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/speechgate/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter installs a periodic OTLP/HTTP meter provider as the global
// provider. The caller shuts it down on exit.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.WithComponent("telemetry").Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns the gateway meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the gateway's metric instruments.
type Metrics struct {
	scheduleTotal   metric.Int64Counter
	queueWait       metric.Float64Histogram
	handlerDuration metric.Float64Histogram
	handlerActive   metric.Int64UpDownCounter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorTotal      metric.Int64Counter
	meter           metric.Meter
}

// NewMetrics creates the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	var err error

	if m.scheduleTotal, err = meter.Int64Counter("schedule.total",
		metric.WithDescription("Schedule attempts by outcome")); err != nil {
		return nil, fmt.Errorf("creating schedule.total counter: %w", err)
	}
	if m.queueWait, err = meter.Float64Histogram("queue.wait",
		metric.WithDescription("Time work items spend queued before a worker picks them up"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating queue.wait histogram: %w", err)
	}
	if m.handlerDuration, err = meter.Float64Histogram("handler.duration",
		metric.WithDescription("Inference handler execution time"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating handler.duration histogram: %w", err)
	}
	if m.handlerActive, err = meter.Int64UpDownCounter("handler.active",
		metric.WithDescription("Handlers currently executing")); err != nil {
		return nil, fmt.Errorf("creating handler.active counter: %w", err)
	}
	if m.requestTotal, err = meter.Int64Counter("request.total",
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("error.total",
		metric.WithDescription("Errors by category and component")); err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}
	return m, nil
}

// RecordSchedule counts one schedule attempt with its outcome
// ("accepted", "closed", "full").
func (m *Metrics) RecordSchedule(ctx context.Context, outcome string) {
	m.scheduleTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordQueueWait records how long an item waited in the queue.
func (m *Metrics) RecordQueueWait(ctx context.Context, d time.Duration) {
	m.queueWait.Record(ctx, d.Seconds())
}

// HandlerStarted marks a handler invocation as active.
func (m *Metrics) HandlerStarted(ctx context.Context) {
	m.handlerActive.Add(ctx, 1)
}

// HandlerFinished records a finished handler invocation.
func (m *Metrics) HandlerFinished(ctx context.Context, status string, d time.Duration) {
	m.handlerActive.Add(ctx, -1)
	m.handlerDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordError counts an error by category and component.
func (m *Metrics) RecordError(ctx context.Context, category, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("component", component),
	))
}

// QueueStats is the snapshot ObserveQueue reports as gauges.
type QueueStats struct {
	InQueue     int64
	InFlight    int64
	MaxInFlight int64
}

// ObserveQueue registers queue.depth, queue.in_flight and queue.max_in_flight
// gauges read from snapshot at each collection.
func (m *Metrics) ObserveQueue(snapshot func() QueueStats) (metric.Registration, error) {
	depth, err := m.meter.Int64ObservableGauge("queue.depth",
		metric.WithDescription("Work items waiting for a worker"))
	if err != nil {
		return nil, fmt.Errorf("creating queue.depth gauge: %w", err)
	}
	inFlight, err := m.meter.Int64ObservableGauge("queue.in_flight",
		metric.WithDescription("Work items being handled"))
	if err != nil {
		return nil, fmt.Errorf("creating queue.in_flight gauge: %w", err)
	}
	maxInFlight, err := m.meter.Int64ObservableGauge("queue.max_in_flight",
		metric.WithDescription("Number of workers"))
	if err != nil {
		return nil, fmt.Errorf("creating queue.max_in_flight gauge: %w", err)
	}
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := snapshot()
		o.ObserveInt64(depth, s.InQueue)
		o.ObserveInt64(inFlight, s.InFlight)
		o.ObserveInt64(maxInFlight, s.MaxInFlight)
		return nil
	}, depth, inFlight, maxInFlight)
}
