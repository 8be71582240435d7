// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics using conc task handles. It enables incremental migration
// without restructuring call sites into a combinator tree.
package errgroup

import (
	"context"
	"sync"

	"github.com/NetPo4ki/go-conc/conc"
)

// Group is an errgroup-like wrapper over conc.Spawn with fail-fast
// semantics: the first non-nil error cancels the group context.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handles  []*conc.Handle[struct{}]
	firstErr error
}

// WithContext creates a Group bound to ctx. The returned context is
// canceled when any function passed to Go returns a non-nil error, and
// when Wait returns.
func WithContext(ctx context.Context) (*Group, context.Context) {
	gctx, cancel := context.WithCancel(ctx)
	g := &Group{ctx: gctx, cancel: cancel}
	return g, g.ctx
}

// Go starts a function on its own task. It should return a non-nil error
// to signal failure.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	h := conc.Spawn(g.ctx, func(context.Context) (struct{}, error) {
		err := f()
		if err != nil {
			g.fail(err)
		}
		return struct{}{}, err
	})
	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()
}

// Wait blocks until all functions have returned, including any started
// while waiting. It returns the first non-nil error or nil on success;
// the group context is canceled before Wait returns.
func (g *Group) Wait() error {
	for i := 0; ; i++ {
		g.mu.Lock()
		if i >= len(g.handles) {
			g.mu.Unlock()
			break
		}
		h := g.handles[i]
		g.mu.Unlock()
		_, _ = h.Join()
	}
	g.cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstErr
}

func (g *Group) fail(err error) {
	g.mu.Lock()
	if g.firstErr == nil {
		g.firstErr = err
	}
	g.mu.Unlock()
	g.cancel()
}
