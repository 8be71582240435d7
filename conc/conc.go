package conc

import (
	"context"
	"errors"
)

// ErrNoAlternative is the failure of an OR-combination that bottomed out
// with no branch left to try. It is the identity failure of Race: if a
// race ends with both a real error and ErrNoAlternative, the real error
// is the one reported.
var ErrNoAlternative = errors.New("conc: no alternative available")

// Conc describes a computation producing a T as a tree of concurrently
// evaluated branches. Values are immutable and carry no live task state;
// spawning happens only inside Run, and every task spawned during one
// evaluation is finished or cancelled-and-drained before Run returns.
type Conc[T any] interface {
	eval(ctx context.Context, r *run) (T, error)
}

// Value returns a tree that yields v without spawning anything.
func Value[T any](v T) Conc[T] { return valueNode[T]{v: v} }

// Go wraps a single schedulable action as a leaf. Each evaluation runs
// the action on its own task; the action must honor ctx cancellation to
// be interruptible while blocked.
func Go[T any](fn func(ctx context.Context) (T, error)) Conc[T] {
	return leafNode[T]{fn: fn}
}

// Zip combines two trees AND-wise: both branches run concurrently and
// both must succeed, with combine merging their results. The branch that
// fails first in wall-clock order decides the error; the sibling is
// cancelled and drained before the node returns.
func Zip[A, B, T any](left Conc[A], right Conc[B], combine func(A, B) T) Conc[T] {
	return zipNode[A, B, T]{left: left, right: right, combine: combine}
}

// Map applies f to the result of c. No additional task is spawned.
func Map[A, T any](c Conc[A], f func(A) T) Conc[T] {
	return mapNode[A, T]{inner: c, f: f}
}

// All combines any number of trees AND-wise, preserving result order.
// The chain is right-nested, but fold direction is unobservable: the
// success, failure and cancellation semantics of Zip are associative.
func All[T any](branches ...Conc[T]) Conc[[]T] {
	switch len(branches) {
	case 0:
		return Value[[]T](nil)
	case 1:
		return Map(branches[0], func(v T) []T { return []T{v} })
	}
	rest := All(branches[1:]...)
	return Zip(branches[0], rest, func(v T, vs []T) []T {
		out := make([]T, 0, len(vs)+1)
		out = append(out, v)
		return append(out, vs...)
	})
}

// Race combines branches OR-wise into a right-nested chain: all branches
// run concurrently, the first to succeed wins and the rest are cancelled
// and drained. A failing branch is eliminated without ending the race.
// Race() with no branches is Empty.
func Race[T any](branches ...Conc[T]) Conc[T] {
	switch len(branches) {
	case 0:
		return Empty[T]()
	case 1:
		return branches[0]
	}
	return raceNode[T]{left: branches[0], right: Race(branches[1:]...)}
}

// Empty is the identity of Race: a tree that always fails with
// ErrNoAlternative and never spawns anything.
func Empty[T any]() Conc[T] { return emptyNode[T]{} }

type valueNode[T any] struct{ v T }

type leafNode[T any] struct {
	fn func(ctx context.Context) (T, error)
}

type zipNode[A, B, T any] struct {
	left    Conc[A]
	right   Conc[B]
	combine func(A, B) T
}

type mapNode[A, T any] struct {
	inner Conc[A]
	f     func(A) T
}

type raceNode[T any] struct {
	left  Conc[T]
	right Conc[T]
}

type emptyNode[T any] struct{}
