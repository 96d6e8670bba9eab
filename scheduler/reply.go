package scheduler

import (
	"context"
	stderrors "errors"
	"io"
	"sync"

	"github.com/kbukum/speechgate/errors"
)

// ErrAbandoned is returned by Receiver.Next after Abandon.
var ErrAbandoned = stderrors.New("scheduler: receiver abandoned")

// Result is one entry on a reply channel: a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

type reply[T any] struct {
	buf       *Queue[Result[T]]
	abandoned chan struct{}
	abandon   sync.Once
}

// Sender is the producer side of a reply channel. It is used by exactly one
// worker for exactly one request.
type Sender[T any] struct {
	r *reply[T]
}

// Receiver is the consumer side of a reply channel.
type Receiver[T any] struct {
	r        *reply[T]
	received int
}

// NewReply creates an unbounded single-producer single-consumer reply
// channel. Values arrive in send order.
func NewReply[T any]() (*Sender[T], *Receiver[T]) {
	r := &reply[T]{
		buf:       NewQueue[Result[T]](0),
		abandoned: make(chan struct{}),
	}
	return &Sender[T]{r: r}, &Receiver[T]{r: r}
}

// Send delivers v without blocking. It returns false once the receiver has
// been abandoned or the sender closed.
func (s *Sender[T]) Send(v T) bool {
	return s.push(Result[T]{Value: v})
}

// Fail delivers err as the next result.
func (s *Sender[T]) Fail(err error) bool {
	return s.push(Result[T]{Err: err})
}

func (s *Sender[T]) push(res Result[T]) bool {
	if s.Abandoned() {
		return false
	}
	return s.r.buf.Push(res) == nil
}

// Close marks the end of the reply. Buffered values stay readable.
func (s *Sender[T]) Close() {
	s.r.buf.Close()
}

// Done is closed when the receiver abandons the reply.
func (s *Sender[T]) Done() <-chan struct{} {
	return s.r.abandoned
}

// Abandoned reports whether the receiver has abandoned the reply.
func (s *Sender[T]) Abandoned() bool {
	select {
	case <-s.r.abandoned:
		return true
	default:
		return false
	}
}

// Next returns the next value in send order. A delivered error is returned
// as-is. When the sender closes, Next returns a NO_RESPONSE AppError if
// nothing was ever delivered and io.EOF otherwise. If ctx ends first the
// receiver is abandoned and ctx.Err() returned.
func (r *Receiver[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-r.r.abandoned:
		return zero, ErrAbandoned
	default:
	}

	res, err := r.r.buf.Pop(ctx)
	switch {
	case stderrors.Is(err, ErrQueueClosed):
		if r.received == 0 {
			return zero, errors.NoResponse()
		}
		return zero, io.EOF
	case err != nil:
		r.Abandon()
		return zero, err
	}

	r.received++
	if res.Err != nil {
		return zero, res.Err
	}
	return res.Value, nil
}

// Abandon tells the producer nobody is listening. Buffered values are
// released and later sends become no-ops. Abandon is idempotent.
func (r *Receiver[T]) Abandon() {
	r.r.abandon.Do(func() {
		close(r.r.abandoned)
		r.r.buf.Close()
		r.r.buf.DrainAll()
	})
}

// Await returns the first result on r and abandons the rest. It suits
// callers that expect a single response.
func Await[T any](ctx context.Context, r *Receiver[T]) (T, error) {
	v, err := r.Next(ctx)
	r.Abandon()
	return v, err
}

// IsNoResponse reports whether err signals a reply closed without values.
func IsNoResponse(err error) bool {
	return errors.HasCode(err, errors.ErrCodeNoResponse)
}
