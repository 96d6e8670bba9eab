package scheduler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
)

// WorkItem pairs a request with the sender of its reply channel.
type WorkItem[Req, Resp any] struct {
	ID         string
	Request    Req
	Reply      *Sender[Resp]
	EnqueuedAt time.Time
	ctx        context.Context
}

// Context carries the caller's request-scoped values (request id, trace
// span) without its cancellation.
func (w *WorkItem[Req, Resp]) Context() context.Context {
	return w.ctx
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	InQueue     int    `json:"in_queue"`
	InFlight    int    `json:"in_flight"`
	MaxInFlight int    `json:"max_in_flight"`
	Scheduled   uint64 `json:"scheduled"`
	Completed   uint64 `json:"completed"`
	Failed      uint64 `json:"failed"`
	Abandoned   uint64 `json:"abandoned"`
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	capacity int
	log      *logger.Logger
	metrics  *observability.Metrics
}

// WithCapacity bounds the queue. Schedule fails with OVERLOADED when full.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithScheduleMetrics records schedule outcomes and queue wait times.
func WithScheduleMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Scheduler bridges request producers to worker goroutines. Producers call
// Schedule and read their own Receiver; workers pull WorkItems in FIFO order.
type Scheduler[Req, Resp any] struct {
	queue   *Queue[*WorkItem[Req, Resp]]
	log     *logger.Logger
	metrics *observability.Metrics

	inFlight  atomic.Int64
	workers   atomic.Int64
	scheduled atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	abandoned atomic.Uint64
}

// New creates a scheduler with an unbounded queue unless WithCapacity is set.
func New[Req, Resp any](opts ...Option) *Scheduler[Req, Resp] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("scheduler")
	}
	return &Scheduler[Req, Resp]{
		queue:   NewQueue[*WorkItem[Req, Resp]](o.capacity),
		log:     o.log,
		metrics: o.metrics,
	}
}

// Schedule enqueues req and returns the receiver for its replies. It never
// blocks. ctx contributes values only; cancelling it does not unschedule the
// request (abandon the receiver for that).
func (s *Scheduler[Req, Resp]) Schedule(ctx context.Context, req Req) (*Receiver[Resp], error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSchedule)
	defer span.End()

	sender, receiver := NewReply[Resp]()
	item := &WorkItem[Req, Resp]{
		ID:         uuid.NewString(),
		Request:    req,
		Reply:      sender,
		EnqueuedAt: time.Now(),
		ctx:        context.WithoutCancel(ctx),
	}
	observability.SetSpanAttribute(ctx, observability.AttrWorkItemID, item.ID)

	if err := s.queue.Push(item); err != nil {
		var appErr *errors.AppError
		outcome := "closed"
		if stderrors.Is(err, ErrQueueFull) {
			outcome = "full"
			appErr = errors.Overloaded(s.queue.Capacity())
		} else {
			appErr = errors.SchedulingFailed("scheduler is closed").WithCause(err)
		}
		s.recordSchedule(ctx, outcome)
		observability.SetSpanError(ctx, appErr)
		s.log.WithContext(ctx).Warn("schedule rejected", logger.Fields("reason", outcome, logger.FieldQueued, s.queue.Len()))
		return nil, appErr
	}

	s.scheduled.Add(1)
	s.recordSchedule(ctx, "accepted")
	s.log.WithContext(ctx).Debug("request scheduled", logger.Fields("work_item", item.ID, logger.FieldQueued, s.queue.Len()))
	return receiver, nil
}

func (s *Scheduler[Req, Resp]) recordSchedule(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSchedule(ctx, outcome)
	}
}

// Close stops admission. Queued items are still handed to workers.
func (s *Scheduler[Req, Resp]) Close() {
	s.queue.Close()
}

// Closed reports whether Close has been called.
func (s *Scheduler[Req, Resp]) Closed() bool {
	return s.queue.Closed()
}

// Drain removes every queued item and fails it with err, so each request
// still observes exactly one terminal outcome. It returns the count drained.
func (s *Scheduler[Req, Resp]) Drain(err error) int {
	items := s.queue.DrainAll()
	for _, item := range items {
		item.Reply.Fail(err)
		item.Reply.Close()
		s.failed.Add(1)
	}
	if len(items) > 0 {
		s.log.Warn("drained queued requests", logger.Fields("count", len(items), logger.FieldError, err.Error()))
	}
	return len(items)
}

// Stats returns current counters.
func (s *Scheduler[Req, Resp]) Stats() Stats {
	return Stats{
		InQueue:     s.queue.Len(),
		InFlight:    int(s.inFlight.Load()),
		MaxInFlight: int(s.workers.Load()),
		Scheduled:   s.scheduled.Load(),
		Completed:   s.completed.Load(),
		Failed:      s.failed.Load(),
		Abandoned:   s.abandoned.Load(),
	}
}

// QueueStats adapts Stats for observability.Metrics.ObserveQueue.
func (s *Scheduler[Req, Resp]) QueueStats() observability.QueueStats {
	st := s.Stats()
	return observability.QueueStats{
		InQueue:     int64(st.InQueue),
		InFlight:    int64(st.InFlight),
		MaxInFlight: int64(st.MaxInFlight),
	}
}

func (s *Scheduler[Req, Resp]) next(ctx context.Context) (*WorkItem[Req, Resp], error) {
	return s.queue.Pop(ctx)
}
