package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
)

// Middleware decorates a Handler with cross-cutting behavior.
type Middleware[Req, Resp any] func(Handler[Req, Resp]) Handler[Req, Resp]

// Chain composes middlewares. Chain(a, b, c)(h) is a(b(c(h))).
func Chain[Req, Resp any](mws ...Middleware[Req, Resp]) Middleware[Req, Resp] {
	return func(h Handler[Req, Resp]) Handler[Req, Resp] {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// countingSink counts values the handler emitted.
type countingSink[T any] struct {
	Sink[T]
	n atomic.Int64
}

func (c *countingSink[T]) Send(v T) bool {
	c.n.Add(1)
	return c.Sink.Send(v)
}

// WithLogging logs each handler invocation with its duration, output count
// and error.
func WithLogging[Req, Resp any](log *logger.Logger) Middleware[Req, Resp] {
	return func(next Handler[Req, Resp]) Handler[Req, Resp] {
		return HandlerFunc[Req, Resp](func(ctx context.Context, req Req, out Sink[Resp]) error {
			start := time.Now()
			sink := &countingSink[Resp]{Sink: out}
			err := next.Handle(ctx, req, sink)

			fields := logger.DurationFields("handle", time.Since(start))
			fields["outputs"] = sink.n.Load()
			fields["work_item"] = WorkItemIDFromContext(ctx)
			if id, ok := WorkerFromContext(ctx); ok {
				fields[logger.FieldWorker] = id
			}
			l := log.WithContext(ctx)
			if err != nil {
				fields[logger.FieldError] = err.Error()
				l.Error("handler failed", fields)
			} else {
				l.Info("handler completed", fields)
			}
			return err
		})
	}
}

// WithTracing wraps each invocation in a span that is a child of the span
// active when the request was scheduled.
func WithTracing[Req, Resp any]() Middleware[Req, Resp] {
	return func(next Handler[Req, Resp]) Handler[Req, Resp] {
		return HandlerFunc[Req, Resp](func(ctx context.Context, req Req, out Sink[Resp]) error {
			ctx, span := observability.StartSpan(ctx, observability.SpanHandle, trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			observability.SetSpanAttribute(ctx, observability.AttrWorkItemID, WorkItemIDFromContext(ctx))
			if id, ok := WorkerFromContext(ctx); ok {
				observability.SetSpanAttribute(ctx, observability.AttrWorker, id)
			}
			if rid := logger.RequestIDFromContext(ctx); rid != "" {
				observability.SetSpanAttribute(ctx, observability.AttrRequestID, rid)
			}
			err := next.Handle(ctx, req, out)
			if err != nil {
				if appErr, ok := errors.AsAppError(err); ok {
					observability.SetSpanAttribute(ctx, observability.AttrErrorCode, string(appErr.Code))
				}
				observability.SetSpanError(ctx, err)
			}
			return err
		})
	}
}

// WithMetrics records handler activity and duration.
func WithMetrics[Req, Resp any](m *observability.Metrics) Middleware[Req, Resp] {
	return func(next Handler[Req, Resp]) Handler[Req, Resp] {
		return HandlerFunc[Req, Resp](func(ctx context.Context, req Req, out Sink[Resp]) error {
			start := time.Now()
			m.HandlerStarted(ctx)
			err := next.Handle(ctx, req, out)

			status := "ok"
			if err != nil {
				status = "error"
				m.RecordError(ctx, string(errors.CategoryHandler), "scheduler")
			}
			m.HandlerFinished(ctx, status, time.Since(start))
			return err
		})
	}
}
