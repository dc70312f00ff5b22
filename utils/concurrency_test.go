package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionGateCeiling(t *testing.T) {
	g := NewAdmissionGate(2)

	require.True(t, g.TryAcquire())
	require.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire(), "third acquire must be rejected")
	assert.Equal(t, int64(2), g.Active())

	g.Release()
	assert.True(t, g.TryAcquire(), "released slot should be reusable")
	assert.Equal(t, int64(2), g.Ceiling())
}

func TestAdmissionGateConcurrentAcquire(t *testing.T) {
	const ceiling = 5
	g := NewAdmissionGate(ceiling)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire() {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(ceiling), admitted.Load())
	assert.Equal(t, int64(ceiling), g.Active())
}

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(10, 0)
	var done atomic.Int64
	for i := 0; i < 100; i++ {
		pool.Submit(func() { done.Add(1) })
	}
	pool.Wait()

	assert.Equal(t, int64(100), done.Load())
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimit := 50 * time.Millisecond
	pool := NewWorkerPool(1, rateLimit)

	var mu sync.Mutex
	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		})
	}
	pool.Wait()

	require.Len(t, timestamps, 3)
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqualf(t, gap, rateLimit-5*time.Millisecond, "gap between job %d and %d", i-1, i)
	}
}
