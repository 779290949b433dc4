package fetch

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesConcurrentAcquires(t *testing.T) {
	const (
		interval = 50 * time.Millisecond
		workers  = 4
	)
	l := NewLimiter(interval)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(ctx))
			now := time.Now()
			mu.Lock()
			grants = append(grants, now)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Timer granularity can wake a waiter fractionally early.
	const slack = 5 * time.Millisecond

	require.GreaterOrEqual(t, time.Since(start), (workers-1)*interval-slack)

	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		gap := grants[i].Sub(grants[i-1])
		require.GreaterOrEqual(t, gap, interval-slack,
			"grants %d and %d only %v apart", i-1, i, gap)
	}
}

func TestLimiterFirstAcquireImmediate(t *testing.T) {
	l := NewLimiter(time.Minute)

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiterAcquireRespectsCancellation(t *testing.T) {
	l := NewLimiter(time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Acquire(ctx))
}
