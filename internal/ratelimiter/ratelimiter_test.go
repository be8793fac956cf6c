package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AcquireEnforcesSteadyStateDelay(t *testing.T) {
	r := NewRegistry(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestRegistry_DifferentDomainsDoNotShareAFloor(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "job1", "a.example.com"))
	start := time.Now()
	require.NoError(t, r.Acquire(ctx, "job1", "b.example.com"))
	// A fresh domain limiter has no lastRequestAt yet, so it must not wait
	// on job1/a.example.com's floor.
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestRegistry_SameDomainDifferentJobsDoNotShareALimiter(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	start := time.Now()
	require.NoError(t, r.Acquire(ctx, "job2", "example.com"))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestRegistry_AcquireReleasesStrictlyInFIFOOrder(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	ctx := context.Background()

	// Prime the limiter so every subsequent Acquire must actually wait,
	// giving waiters time to queue up before any of them is released.
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))

	const n := 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Stagger goroutine start so waiters enqueue in a known order;
			// the limiter's internal channel then releases them FIFO.
			time.Sleep(time.Duration(i) * 2 * time.Millisecond)
			require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, order, n)
	for i, v := range order {
		assert.Equal(t, i, v, "waiters must be released in enqueue order")
	}
}

func TestRegistry_ThrottleExtendsFloorBeyondSteadyStateDelay(t *testing.T) {
	r := NewRegistry(1 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	r.Throttle("job1", "example.com", 40*time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRegistry_SetDelayChangesSubsequentPacing(t *testing.T) {
	r := NewRegistry(5 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	r.SetDelay("job1", "example.com", 50*time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestRegistry_AcquireRespectsContextCancellation(t *testing.T) {
	r := NewRegistry(time.Hour)
	ctx := context.Background()
	// Prime lastRequestAt so the next Acquire must wait out the full
	// one-hour delay, giving the test time to cancel before it fires.
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))

	cancelCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Acquire(cancelCtx, "job1", "example.com") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}
}

func TestRegistry_ClearRemovesOnlyThatJobsLimiters(t *testing.T) {
	r := NewRegistry(time.Millisecond)
	ctx := context.Background()
	require.NoError(t, r.Acquire(ctx, "job1", "example.com"))
	require.NoError(t, r.Acquire(ctx, "job2", "example.com"))

	r.Clear("job1")

	r.mu.Lock()
	_, job1Present := r.limiters[key("job1", "example.com")]
	_, job2Present := r.limiters[key("job2", "example.com")]
	r.mu.Unlock()

	assert.False(t, job1Present)
	assert.True(t, job2Present)
}
