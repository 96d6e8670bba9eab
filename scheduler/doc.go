// Package scheduler bridges concurrent request producers to inference
// handlers running on dedicated worker goroutines.
//
// A producer calls Schedule, which enqueues a WorkItem on an unbounded FIFO
// and returns a Receiver without blocking. Workers pop items in order, skip
// those whose receiver was abandoned, and run the Handler, which streams
// zero or more values into the item's reply channel. Every scheduled request
// observes exactly one terminal outcome: its values, a handler error, a
// NO_RESPONSE error when the handler produced nothing, or a
// SCHEDULING_FAILED error if the pool shut down first.
//
//	sched := scheduler.New[Req, Resp]()
//	pool := scheduler.NewPool("workers", sched, 2, factory)
//	_ = pool.Start(ctx)
//
//	rx, err := sched.Schedule(ctx, req)
//	resp, err := scheduler.Await(ctx, rx)
package scheduler
