package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
)

// Sink receives a handler's outputs. Send never blocks and returns false
// once nobody is listening.
type Sink[T any] interface {
	Send(v T) bool
}

// Handler performs inference for one request, emitting zero or more values
// to out. A returned error is delivered to the caller after any values
// already sent.
type Handler[Req, Resp any] interface {
	Handle(ctx context.Context, req Req, out Sink[Resp]) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[Req, Resp any] func(ctx context.Context, req Req, out Sink[Resp]) error

func (f HandlerFunc[Req, Resp]) Handle(ctx context.Context, req Req, out Sink[Resp]) error {
	return f(ctx, req, out)
}

// HandlerFactory builds the handler for one worker.
type HandlerFactory[Req, Resp any] func(worker int) (Handler[Req, Resp], error)

type ctxKey int

const (
	workerKey ctxKey = iota
	itemKey
)

// WorkerFromContext returns the id of the worker handling the request.
func WorkerFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerKey).(int)
	return id, ok
}

// WorkItemIDFromContext returns the id of the work item being handled.
func WorkItemIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(itemKey).(string)
	return id
}

// Worker pulls work items from a scheduler and runs them through a handler,
// one at a time.
type Worker[Req, Resp any] struct {
	id      int
	sched   *Scheduler[Req, Resp]
	handler Handler[Req, Resp]
	log     *logger.Logger
}

// NewWorker creates a worker bound to s.
func NewWorker[Req, Resp any](id int, s *Scheduler[Req, Resp], h Handler[Req, Resp]) *Worker[Req, Resp] {
	return &Worker[Req, Resp]{
		id:      id,
		sched:   s,
		handler: h,
		log:     s.log.WithFields(logger.Fields(logger.FieldWorker, id)),
	}
}

// Run processes items until the scheduler is closed and empty (returns nil)
// or ctx is done (returns ctx.Err()). A failing item never stops the loop.
func (w *Worker[Req, Resp]) Run(ctx context.Context) error {
	w.sched.workers.Add(1)
	defer w.sched.workers.Add(-1)
	w.log.Debug("worker started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := w.sched.next(ctx)
		if err != nil {
			if stderrors.Is(err, ErrQueueClosed) {
				w.log.Debug("worker stopped: queue closed")
				return nil
			}
			return err
		}
		w.process(ctx, item)
	}
}

func (w *Worker[Req, Resp]) process(ctx context.Context, item *WorkItem[Req, Resp]) {
	s := w.sched
	defer item.Reply.Close()

	if item.Reply.Abandoned() {
		s.abandoned.Add(1)
		w.log.WithContext(item.ctx).Debug("skipping abandoned request", logger.Fields("work_item", item.ID))
		return
	}

	hctx, cancel := context.WithCancel(item.ctx)
	defer cancel()
	hctx = context.WithValue(hctx, workerKey, w.id)
	hctx = context.WithValue(hctx, itemKey, item.ID)
	stopWorker := context.AfterFunc(ctx, cancel)
	defer stopWorker()
	done := hctx.Done()
	go func() {
		select {
		case <-item.Reply.Done():
			cancel()
		case <-done:
		}
	}()

	wait := time.Since(item.EnqueuedAt)
	if s.metrics != nil {
		s.metrics.RecordQueueWait(hctx, wait)
	}

	s.inFlight.Add(1)
	err := w.invoke(hctx, item)
	s.inFlight.Add(-1)

	if err == nil {
		s.completed.Add(1)
		return
	}
	if item.Reply.Abandoned() {
		s.abandoned.Add(1)
		return
	}
	s.failed.Add(1)
	if ctx.Err() != nil {
		item.Reply.Fail(errors.SchedulingFailed("worker stopped before the request completed").WithCause(err))
		return
	}
	w.log.WithContext(item.ctx).Warn("handler failed", logger.Fields("work_item", item.ID, logger.FieldError, err.Error()))
	item.Reply.Fail(asHandlerError(err))
}

func (w *Worker[Req, Resp]) invoke(ctx context.Context, item *WorkItem[Req, Resp]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithContext(ctx).Error("handler panic", logger.Fields(
				"work_item", item.ID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler.Handle(ctx, item.Request, item.Reply)
}

// asHandlerError keeps AppErrors raised by the handler and wraps anything
// else as HANDLER_FAILED.
func asHandlerError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.HandlerFailed(err)
}
