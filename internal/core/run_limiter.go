package core

// run_limiter.go bounds how many reconciliation runs execute at once.
//
// Each run holds every uploaded workbook and the filled output in memory, so
// the limiter is what keeps a burst of uploads from exhausting the process.
// When all slots are taken a caller waits up to maxWait, then gets
// ErrTooManyRuns. WaitForDrain lets shutdown wait for in-flight runs.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait time.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const (
	// DefaultMaxConcurrentRuns is used when a non-positive limit is configured.
	DefaultMaxConcurrentRuns = 4

	// DefaultMaxWaitTime is used when a non-positive wait is configured.
	DefaultMaxWaitTime = 30 * time.Second

	drainPollInterval = 50 * time.Millisecond
)

// RunLimiter is a counting semaphore for runs.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewRunLimiter allows at most maxConcurrent runs; waiters give up after maxWait.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a run slot. It returns ctx.Err() if ctx ends first and
// ErrTooManyRuns if the wait times out. Callers must Release on success.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyRuns
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *RunLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of runs holding a slot.
func (l *RunLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the slot count.
func (l *RunLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *RunLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no run is active or ctx ends.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// RunLimiterStatus is a point-in-time snapshot for health endpoints.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *RunLimiter) Status() RunLimiterStatus {
	return RunLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}
