package conc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMaxConcurrencyBound(t *testing.T) {
	t.Parallel()
	const N = 4
	const M = 32
	var cur, maxSeen atomic.Int64
	err := ReplicateConcurrently(context.Background(), M, func(_ context.Context) error {
		c := cur.Add(1)
		defer cur.Add(-1)
		for {
			m := maxSeen.Load()
			if c <= m || maxSeen.CompareAndSwap(m, c) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	}, WithMaxConcurrency(N))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if observed := int(maxSeen.Load()); observed > N {
		t.Fatalf("observed concurrency %d exceeds limit %d", observed, N)
	}
}

func TestLimiterAcquireRespectsCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	hold := Go(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	// With a single slot this leaf is stuck inside the limiter's Acquire
	// until the deadline cancels it.
	queued := Go(func(_ context.Context) (int, error) { return 1, nil })

	start := time.Now()
	_, err := Run(ctx, Zip(hold, queued, func(a, b int) int { return a + b }), WithMaxConcurrency(1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("expected quick abort on cancel, got %v", elapsed)
	}
}
