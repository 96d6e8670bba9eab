package scheduler

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/speechgate/component"
	"github.com/kbukum/speechgate/errors"
)

func TestPool_StatsAndHealth(t *testing.T) {
	s := New[echoReq, string]()
	p := startPool(t, s, 3, echoHandler())

	eventually(t, func() bool { return s.Stats().MaxInFlight == 3 })
	h := p.Health(context.Background())
	if h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %+v", h)
	}
	if h.Details["max_in_flight"] != 3 {
		t.Errorf("unexpected details %v", h.Details)
	}
	if d := p.Describe(); d.Details != "workers=3 capacity=unbounded" {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestPool_GracefulStopFinishesQueue(t *testing.T) {
	s := New[echoReq, string]()
	var rxs []*Receiver[string]
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		rx, err := s.Schedule(context.Background(), echoReq{ID: id})
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		rxs = append(rxs, rx)
	}

	p := NewPool("pool", s, 2, func(int) (Handler[echoReq, string], error) { return echoHandler(), nil })
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for i, rx := range rxs {
		if _, err := Await(context.Background(), rx); err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if p.Health(context.Background()).Status != component.StatusUnhealthy {
		t.Error("stopped pool should report unhealthy")
	}
	if _, err := s.Schedule(context.Background(), echoReq{}); !errors.HasCode(err, errors.ErrCodeSchedulingFailed) {
		t.Errorf("expected schedule after stop to fail, got %v", err)
	}
}

func TestPool_StopDeadlineFailsRemaining(t *testing.T) {
	started := make(chan struct{}, 1)
	s := New[echoReq, string]()
	p := NewPool("pool", s, 1, func(int) (Handler[echoReq, string], error) {
		return HandlerFunc[echoReq, string](func(ctx context.Context, _ echoReq, _ Sink[string]) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return ctx.Err()
		}), nil
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var rxs []*Receiver[string]
	for i := 0; i < 3; i++ {
		rx, _ := s.Schedule(context.Background(), echoReq{})
		rxs = append(rxs, rx)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for i, rx := range rxs {
		_, err := rx.Next(context.Background())
		if !errors.HasCode(err, errors.ErrCodeSchedulingFailed) {
			t.Errorf("request %d: expected SCHEDULING_FAILED, got %v", i, err)
		}
	}
}

func TestPool_FactoryError(t *testing.T) {
	s := New[echoReq, string]()
	p := NewPool("pool", s, 2, func(worker int) (Handler[echoReq, string], error) {
		if worker == 1 {
			return nil, stderrors.New("no model")
		}
		return echoHandler(), nil
	})
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected factory error")
	}
}

func TestPool_DoubleStart(t *testing.T) {
	s := New[echoReq, string]()
	p := startPool(t, s, 1, echoHandler())
	if err := p.Start(context.Background()); err == nil {
		t.Error("expected error on second Start")
	}
}
