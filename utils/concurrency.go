package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool manages a pool of goroutines with rate limiting.
type WorkerPool struct {
	rateLimit   time.Duration
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and minimum
// interval between job starts.
func NewWorkerPool(maxWorkers int, rateLimit time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		rateLimit: rateLimit,
		semaphore: make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job, blocking while all workers are busy.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforceRateLimit()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) enforceRateLimit() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.lastRequest.IsZero() {
		if elapsed := time.Since(wp.lastRequest); elapsed < wp.rateLimit {
			time.Sleep(wp.rateLimit - elapsed)
		}
	}
	wp.lastRequest = time.Now()
}

// AdmissionGate admits at most Ceiling concurrent holders and rejects the rest
// outright instead of queueing them.
type AdmissionGate struct {
	ceiling int64
	active  atomic.Int64
}

// NewAdmissionGate creates a gate with the given ceiling.
func NewAdmissionGate(ceiling int) *AdmissionGate {
	return &AdmissionGate{ceiling: int64(ceiling)}
}

// TryAcquire takes a slot if one is free. Every successful call must be
// paired with Release.
func (g *AdmissionGate) TryAcquire() bool {
	for {
		cur := g.active.Load()
		if cur >= g.ceiling {
			return false
		}
		if g.active.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release frees a slot taken by TryAcquire.
func (g *AdmissionGate) Release() {
	g.active.Add(-1)
}

// Active returns the number of slots currently held.
func (g *AdmissionGate) Active() int64 { return g.active.Load() }

// Ceiling returns the configured maximum.
func (g *AdmissionGate) Ceiling() int64 { return g.ceiling }
