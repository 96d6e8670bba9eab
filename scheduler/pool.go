package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/speechgate/component"
	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
)

// DefaultForceStopTimeout bounds how long Stop waits for handlers to honor
// cancellation once its own deadline has passed.
const DefaultForceStopTimeout = 5 * time.Second

// Pool runs a fixed number of workers against one scheduler and manages
// their lifecycle as a component.
type Pool[Req, Resp any] struct {
	name       string
	sched      *Scheduler[Req, Resp]
	size       int
	factory    HandlerFactory[Req, Resp]
	middleware []Middleware[Req, Resp]
	log        *logger.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	running atomic.Bool
}

var (
	_ component.Component   = (*Pool[any, any])(nil)
	_ component.Describable = (*Pool[any, any])(nil)
)

// NewPool creates a pool of size workers. Each worker gets its own handler
// from factory, wrapped by mws (first is outermost).
func NewPool[Req, Resp any](name string, s *Scheduler[Req, Resp], size int, factory HandlerFactory[Req, Resp], mws ...Middleware[Req, Resp]) *Pool[Req, Resp] {
	if size < 1 {
		size = 1
	}
	return &Pool[Req, Resp]{
		name:       name,
		sched:      s,
		size:       size,
		factory:    factory,
		middleware: mws,
		log:        logger.WithComponent(name),
	}
}

func (p *Pool[Req, Resp]) Name() string { return p.name }

// Start builds the handlers and launches the workers. Workers outlive ctx;
// they stop through Stop.
func (p *Pool[Req, Resp]) Start(ctx context.Context) error {
	if p.running.Load() {
		return fmt.Errorf("%s already started", p.name)
	}
	chain := Chain(p.middleware...)
	workers := make([]*Worker[Req, Resp], 0, p.size)
	for i := 0; i < p.size; i++ {
		h, err := p.factory(i)
		if err != nil {
			return fmt.Errorf("create handler for worker %d: %w", i, err)
		}
		workers = append(workers, NewWorker(i, p.sched, chain(h)))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})
	for _, w := range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := w.Run(runCtx); err != nil && runCtx.Err() == nil {
				p.log.Error("worker exited", logger.Fields(logger.FieldWorker, w.id, logger.FieldError, err.Error()))
			}
		}()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	p.running.Store(true)
	p.log.Info("worker pool started", logger.Fields("workers", p.size))
	return nil
}

// Stop closes admission and lets workers finish the queue. If ctx ends
// first, in-flight handlers are cancelled and every request still queued is
// failed with SCHEDULING_FAILED.
func (p *Pool[Req, Resp]) Stop(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	p.sched.Close()

	select {
	case <-p.done:
		p.log.Info("worker pool drained")
		return nil
	case <-ctx.Done():
	}

	p.log.Warn("stop deadline reached, cancelling in-flight requests", logger.Fields(logger.FieldInFlight, p.sched.Stats().InFlight))
	p.cancel()
	p.sched.Drain(errors.SchedulingFailed("server is shutting down"))

	select {
	case <-p.done:
		return nil
	case <-time.After(DefaultForceStopTimeout):
		return fmt.Errorf("%s: workers did not stop within %s", p.name, DefaultForceStopTimeout)
	}
}

// Health reports unhealthy when the pool is not running.
func (p *Pool[Req, Resp]) Health(context.Context) component.Health {
	st := p.sched.Stats()
	h := component.Health{
		Name:   p.name,
		Status: component.StatusHealthy,
		Details: map[string]any{
			"in_queue":      st.InQueue,
			"in_flight":     st.InFlight,
			"max_in_flight": st.MaxInFlight,
		},
	}
	if !p.running.Load() || p.sched.Closed() {
		h.Status = component.StatusUnhealthy
		h.Message = "worker pool is not running"
	}
	return h
}

func (p *Pool[Req, Resp]) Describe() component.Description {
	capacity := "unbounded"
	if c := p.sched.queue.Capacity(); c > 0 {
		capacity = fmt.Sprint(c)
	}
	return component.Description{
		Name:    "Worker Pool",
		Type:    "scheduler",
		Details: fmt.Sprintf("workers=%d capacity=%s", p.size, capacity),
	}
}

// Size returns the number of workers.
func (p *Pool[Req, Resp]) Size() int { return p.size }
