package conc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Option func(*Options)

type Options struct {
	PanicAsError   bool
	Observer       Observer
	MaxConcurrency int
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError controls whether a panic inside a leaf action is
// converted to an error (default true). When disabled the panic is
// re-raised on the task's goroutine.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency bounds how many leaf actions run at once within the
// evaluation. Zero or negative means unbounded.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// Observer receives lifecycle hooks from one evaluation. Implementations
// must be safe for concurrent use.
type Observer interface {
	RunStarted(ctx context.Context)
	RunFinished(ctx context.Context, dur time.Duration, err error)
	TaskStarted(ctx context.Context)
	TaskFinished(ctx context.Context, dur time.Duration, err error, panicked bool)
	BranchCancelled(ctx context.Context, cause error)
}

// run carries the per-evaluation state shared by the recursive descent.
// It is owned by exactly one Run call and never escapes it.
type run struct {
	opts Options
	obs  Observer
	lim  Limiter
}

// Run evaluates tree and returns its result, or exactly one error. On
// every exit path (success, failure, or cancellation of ctx) every task
// spawned during the evaluation has finished or been cancelled and
// drained, cleanup included, by the time Run returns. A failed or
// cancelled Run never returns a partial result.
func Run[T any](ctx context.Context, tree Conc[T], optFns ...Option) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &run{opts: defaultOptions()}
	for _, fn := range optFns {
		fn(&r.opts)
	}
	r.obs = r.opts.Observer
	if r.opts.MaxConcurrency > 0 {
		r.lim = newSemaphoreLimiter(r.opts.MaxConcurrency)
	}

	var start time.Time
	if r.obs != nil {
		start = time.Now()
		r.obs.RunStarted(ctx)
	}
	v, err := tree.eval(ctx, r)
	if err != nil {
		var zero T
		v = zero
	}
	if r.obs != nil {
		r.obs.RunFinished(ctx, time.Since(start), err)
	}
	return v, err
}

// ReplicateConcurrently runs action n times concurrently, each invocation
// on its own task, and waits for all of them. The n leaves are folded
// into a right-nested AND-chain and evaluated as one tree: the first
// invocation to fail cancels the rest, and all invocations are drained
// before the call returns. For n <= 0 nothing is spawned.
func ReplicateConcurrently(ctx context.Context, n int, action func(ctx context.Context) error, optFns ...Option) error {
	if n <= 0 {
		_, err := Run(ctx, Value(struct{}{}), optFns...)
		return err
	}
	leaf := func() Conc[struct{}] {
		return Go(func(c context.Context) (struct{}, error) {
			return struct{}{}, action(c)
		})
	}
	tree := leaf()
	for i := 1; i < n; i++ {
		tree = Zip(leaf(), tree, func(struct{}, struct{}) struct{} { return struct{}{} })
	}
	_, err := Run(ctx, tree, optFns...)
	return err
}

func (r *run) cancelBranch(ctx context.Context, cause error, cancel context.CancelFunc) {
	if r.obs != nil {
		r.obs.BranchCancelled(ctx, cause)
	}
	cancel()
}

func (n valueNode[T]) eval(context.Context, *run) (T, error) { return n.v, nil }

func (n emptyNode[T]) eval(context.Context, *run) (T, error) {
	var zero T
	return zero, ErrNoAlternative
}

func (n mapNode[A, T]) eval(ctx context.Context, r *run) (T, error) {
	v, err := n.inner.eval(ctx, r)
	if err != nil {
		var zero T
		return zero, err
	}
	return n.f(v), nil
}

func (n leafNode[T]) eval(ctx context.Context, r *run) (T, error) {
	h := Spawn(ctx, func(tctx context.Context) (v T, err error) {
		if r.lim != nil {
			if aerr := r.lim.Acquire(tctx); aerr != nil {
				return v, aerr
			}
			defer r.lim.Release()
		}
		defer func() {
			if p := recover(); p != nil {
				if r.opts.PanicAsError {
					err = fmt.Errorf("panic: %v", p)
					if r.obs != nil {
						r.obs.TaskFinished(tctx, 0, err, true)
					}
				} else {
					if r.obs != nil {
						r.obs.TaskFinished(tctx, 0, nil, true)
					}
					panic(p)
				}
			}
		}()

		var start time.Time
		if r.obs != nil {
			start = time.Now()
			r.obs.TaskStarted(tctx)
		}
		v, err = n.fn(tctx)
		if r.obs != nil {
			r.obs.TaskFinished(tctx, time.Since(start), err, false)
		}
		return v, err
	})
	defer h.Cancel()
	return h.Join()
}

func (n zipNode[A, B, T]) eval(ctx context.Context, r *run) (T, error) {
	var zero T
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lt := Spawn(bctx, func(c context.Context) (A, error) { return n.left.eval(c, r) })
	rt := Spawn(bctx, func(c context.Context) (B, error) { return n.right.eval(c, r) })

	// Whichever branch completes first in wall-clock order decides which
	// error escapes; the sibling is cancelled and drained before return.
	select {
	case <-lt.Done():
		a, err := lt.Join()
		if err != nil {
			r.cancelBranch(bctx, err, cancel)
			_, _ = rt.Join()
			return zero, err
		}
		b, rerr := rt.Join()
		if rerr != nil {
			return zero, rerr
		}
		return n.combine(a, b), nil
	case <-rt.Done():
		b, err := rt.Join()
		if err != nil {
			r.cancelBranch(bctx, err, cancel)
			_, _ = lt.Join()
			return zero, err
		}
		a, lerr := lt.Join()
		if lerr != nil {
			return zero, lerr
		}
		return n.combine(a, b), nil
	}
}

func (n raceNode[T]) eval(ctx context.Context, r *run) (T, error) {
	var zero T
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lt := Spawn(bctx, func(c context.Context) (T, error) { return n.left.eval(c, r) })
	rt := Spawn(bctx, func(c context.Context) (T, error) { return n.right.eval(c, r) })

	var first, second *Handle[T]
	select {
	case <-lt.Done():
		first, second = lt, rt
	case <-rt.Done():
		first, second = rt, lt
	}
	v, err := first.Join()
	if err == nil {
		// First success wins; the loser is cancelled and drained before
		// the race returns. cause is nil: cancellation by a winner.
		r.cancelBranch(bctx, nil, cancel)
		_, _ = second.Join()
		return v, nil
	}
	v2, err2 := second.Join()
	if err2 == nil {
		return v2, nil
	}
	return zero, pickRaceError(err, err2)
}

// pickRaceError keeps the first-in-time error, except that the
// empty-alternative failure yields to a real error so that Empty stays
// the identity of Race.
func pickRaceError(first, second error) error {
	if errors.Is(first, ErrNoAlternative) && !errors.Is(second, ErrNoAlternative) {
		return second
	}
	return first
}
