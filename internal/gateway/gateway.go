// Package gateway assembles the transcription gateway from its parts: the
// scheduler and worker pool, the selected inference backend, the HTTP server
// with the OpenAI-compatible routes, the engine state monitor and telemetry.
package gateway

import (
	"context"
	"fmt"

	"github.com/kbukum/speechgate/bootstrap"
	"github.com/kbukum/speechgate/component"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/openai"
	"github.com/kbukum/speechgate/provider"
	"github.com/kbukum/speechgate/scheduler"
	"github.com/kbukum/speechgate/server"
	"github.com/kbukum/speechgate/sse"
	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/transcription/stub"
	"github.com/kbukum/speechgate/transcription/whisper"
)

// PoolName is the worker pool's component name.
const PoolName = "transcription-pool"

// Backends returns a registry holding every built-in backend.
func Backends() *provider.Registry[transcription.Backend] {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(stub.ProviderName, stub.Factory())
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
	return reg
}

// Gateway holds the assembled parts. Everything is registered on the
// application's component registry by Build.
type Gateway struct {
	Scheduler *transcription.Scheduler
	Pool      *scheduler.Pool[transcription.Request, transcription.Response]
	Server    *server.Server
	Handler   *openai.Handler
	Monitor   *openai.Monitor
	Metrics   *observability.Metrics
}

// Build wires the gateway into app. Components start in the order telemetry,
// worker pool, backend health, event hub, state monitor, HTTP server, and
// stop in reverse so the server stops accepting before the pool drains.
func Build(app *bootstrap.App[*Config], backends *provider.Registry[transcription.Backend]) (*Gateway, error) {
	cfg := app.Cfg
	log := app.Logger

	if !backends.Has(cfg.Transcription.Backend) {
		return nil, fmt.Errorf("transcription.backend %q is not registered (available: %v)",
			cfg.Transcription.Backend, backends.List())
	}

	if err := app.RegisterComponent(observability.NewTelemetry(cfg.Observability)); err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	opts := append(cfg.Scheduler.Options(),
		scheduler.WithLogger(log.WithComponent("scheduler")),
		scheduler.WithScheduleMetrics(metrics),
	)
	sched := scheduler.New[transcription.Request, transcription.Response](opts...)
	if _, err := metrics.ObserveQueue(sched.QueueStats); err != nil {
		return nil, fmt.Errorf("observe queue: %w", err)
	}

	pool := scheduler.NewPool(PoolName, sched, cfg.Scheduler.Workers,
		transcription.HandlerFactory(backends, cfg.Transcription.Backend, cfg.Transcription.BackendConfig()),
		transcription.StreamMiddleware(),
		scheduler.WithLogging[transcription.Request, transcription.Response](log.WithComponent("worker")),
		scheduler.WithTracing[transcription.Request, transcription.Response](),
		scheduler.WithMetrics[transcription.Request, transcription.Response](metrics),
	)
	if err := app.RegisterComponent(pool); err != nil {
		return nil, err
	}
	if err := app.RegisterComponent(&backendHealth{registry: backends, name: cfg.Transcription.Backend}); err != nil {
		return nil, err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, app.Components.HealthAll, metrics)
	srv.ObserveQueue(sched.QueueStats)

	handler := openai.NewHandler(sched, cfg.Transcription.Config, log, openai.WithMetrics(metrics))
	handler.Register(srv.GinEngine())

	gw := &Gateway{
		Scheduler: sched,
		Pool:      pool,
		Server:    srv,
		Handler:   handler,
		Metrics:   metrics,
	}

	if cfg.Monitor.Enabled {
		events := sse.NewComponent("state-events", cfg.Transcription.APIPrefix+openai.StatePath)
		if err := app.RegisterComponent(events); err != nil {
			return nil, err
		}
		gw.Monitor = openai.NewMonitor(events.Hub(), sched.QueueStats, cfg.Monitor, log)
		if err := app.RegisterComponent(gw.Monitor); err != nil {
			return nil, err
		}
		gw.Monitor.Register(srv.GinEngine(), cfg.Transcription.APIPrefix)
	}

	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return nil, err
	}

	app.OnReady(func(context.Context) error {
		log.Info("Transcription gateway ready", logger.Fields(
			"backend", cfg.Transcription.Backend,
			"workers", pool.Size(),
			"addr", srv.Addr(),
		))
		return nil
	})
	return gw, nil
}

// backendHealth reports the selected backend's health on /health. The
// instance is cached by the worker pool when its first worker starts.
type backendHealth struct {
	registry *provider.Registry[transcription.Backend]
	name     string
}

var (
	_ component.Component   = (*backendHealth)(nil)
	_ component.Describable = (*backendHealth)(nil)
)

func (b *backendHealth) Name() string { return "backend." + b.name }

func (b *backendHealth) Start(context.Context) error { return nil }

func (b *backendHealth) Stop(context.Context) error { return nil }

func (b *backendHealth) Health(ctx context.Context) component.Health {
	h := component.Health{Name: b.Name()}
	backend, ok := b.registry.Get(b.name)
	if !ok {
		h.Status = component.StatusUnhealthy
		h.Message = "backend not initialized"
		return h
	}

	st := provider.CheckHealth(ctx, backend)
	h.Message = st.Message
	h.Details = st.Details
	switch st.Status {
	case provider.StatusHealthy:
		h.Status = component.StatusHealthy
	case provider.StatusDegraded:
		h.Status = component.StatusDegraded
	default:
		h.Status = component.StatusUnhealthy
	}
	return h
}

func (b *backendHealth) Describe() component.Description {
	return component.Description{
		Name:    "Inference Backend",
		Type:    "backend",
		Details: b.name,
	}
}
