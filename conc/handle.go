package conc

import (
	"context"
	"sync/atomic"
)

// TaskState is the observable liveness of a spawned task. It is meant
// for verification and reporting, not for control decisions.
type TaskState int32

const (
	TaskRunning TaskState = iota
	TaskDone
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	case TaskCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Handle is one independently scheduled unit of work. The evaluator
// creates a Handle per leaf; callers may also Spawn their own.
type Handle[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32

	res T
	err error
}

// Spawn starts fn on its own goroutine and returns its handle. The task
// runs under a fresh cancellable child of ctx, so Cancel reaches the
// action no matter what the spawning goroutine is doing at the time.
// Callers must eventually Join or Cancel the handle.
func Spawn[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Handle[T] {
	tctx, cancel := context.WithCancel(ctx)
	h := &Handle[T]{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res, h.err = fn(tctx)
		if h.err != nil && tctx.Err() != nil {
			h.state.Store(int32(TaskCancelled))
		} else {
			h.state.Store(int32(TaskDone))
		}
	}()
	return h
}

// Done is closed when the task has finished, including its cleanup.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Join blocks until the task finishes and returns its result, or the
// error it terminated with.
func (h *Handle[T]) Join() (T, error) {
	<-h.done
	return h.res, h.err
}

// Cancel requests interruption and blocks until the task has fully
// stopped, including any cleanup registered inside it (defers run before
// Cancel returns). Cancelling a finished task is a no-op.
func (h *Handle[T]) Cancel() {
	h.cancel()
	<-h.done
}

// Status reports the task's current liveness.
func (h *Handle[T]) Status() TaskState {
	select {
	case <-h.done:
		return TaskState(h.state.Load())
	default:
		return TaskRunning
	}
}
