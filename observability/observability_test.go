package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_DefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.ExportInterval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
}

func TestSpanHelpers(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, span := tp.Tracer("test").Start(context.Background(), SpanHandle)

	SetSpanAttribute(ctx, AttrWorker, 2)
	SetSpanAttribute(ctx, AttrResponseFormat, "json")
	SetSpanAttribute(ctx, AttrStream, true)
	SetSpanError(ctx, errors.New("boom"))
	traceID, spanID := TraceIDs(ctx)
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
	if len(s.Attributes()) != 3 {
		t.Errorf("expected 3 attributes, got %v", s.Attributes())
	}
	if traceID != s.SpanContext().TraceID().String() || spanID != s.SpanContext().SpanID().String() {
		t.Error("TraceIDs mismatch")
	}
}

func TestTraceIDs_NoSpan(t *testing.T) {
	if tid, sid := TraceIDs(context.Background()); tid != "" || sid != "" {
		t.Errorf("expected empty ids, got %q %q", tid, sid)
	}
	SetSpanError(context.Background(), errors.New("ignored"))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordSchedule(ctx, "accepted")
	m.RecordSchedule(ctx, "accepted")
	m.RecordQueueWait(ctx, 10*time.Millisecond)
	m.HandlerStarted(ctx)
	m.HandlerFinished(ctx, "ok", 20*time.Millisecond)
	m.RecordRequest(ctx, "POST", "/v1/audio/transcriptions", 200, 30*time.Millisecond)
	m.RecordError(ctx, "validation", "openai")

	reg, err := m.ObserveQueue(func() QueueStats { return QueueStats{InQueue: 3, InFlight: 1, MaxInFlight: 2} })
	if err != nil {
		t.Fatalf("ObserveQueue: %v", err)
	}
	defer func() { _ = reg.Unregister() }()

	got := collect(t, reader)
	sum, ok := got["schedule.total"].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Errorf("unexpected schedule.total %+v", got["schedule.total"].Data)
	}
	active, ok := got["handler.active"].Data.(metricdata.Sum[int64])
	if !ok || active.DataPoints[0].Value != 0 {
		t.Errorf("unexpected handler.active %+v", got["handler.active"].Data)
	}
	depth, ok := got["queue.depth"].Data.(metricdata.Gauge[int64])
	if !ok || depth.DataPoints[0].Value != 3 {
		t.Errorf("unexpected queue.depth %+v", got["queue.depth"].Data)
	}
	for _, name := range []string{"queue.wait", "handler.duration", "request.total", "request.duration", "error.total"} {
		if _, ok := got[name]; !ok {
			t.Errorf("missing metric %s", name)
		}
	}
}

func TestTelemetry_Disabled(t *testing.T) {
	tel := NewTelemetry(Config{})
	if err := tel.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tel.Describe().Details != "disabled" {
		t.Errorf("unexpected description %+v", tel.Describe())
	}
	if err := tel.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
