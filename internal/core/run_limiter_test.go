package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := limiter.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	limiter.Release()
	limiter.Release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("after Release, ActiveCount = %d, want 0", got)
	}
}

func TestRunLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewRunLimiter(1, 100*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("expected ErrTooManyRuns, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
}

func TestRunLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	const totalRuns = 10

	limiter := NewRunLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < totalRuns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if current := limiter.ActiveCount(); current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}

	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestRunLimiter_TryAcquire(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)

	if !limiter.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if limiter.TryAcquire() {
		t.Error("second TryAcquire should fail")
		limiter.Release()
	}

	limiter.Release()

	if !limiter.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
	limiter.Release()
}

func TestRunLimiter_ContextCancellation(t *testing.T) {
	limiter := NewRunLimiter(1, 5*time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- limiter.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after context cancellation")
	}
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	ctx := context.Background()

	_ = limiter.Acquire(ctx)
	_ = limiter.Acquire(ctx)

	drained := make(chan error, 1)
	go func() {
		drained <- limiter.WaitForDrain(context.Background())
	}()

	limiter.Release()
	select {
	case <-drained:
		t.Fatal("WaitForDrain returned with one run active")
	case <-time.After(100 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-drained:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after all released")
	}
}

func TestRunLimiter_WaitForDrain_ContextCancelled(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	_ = limiter.Acquire(context.Background())
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRunLimiter_Status(t *testing.T) {
	limiter := NewRunLimiter(3, time.Second)
	_ = limiter.Acquire(context.Background())
	defer limiter.Release()

	want := RunLimiterStatus{Active: 1, Available: 2, MaxConcurrent: 3}
	if got := limiter.Status(); got != want {
		t.Errorf("Status() = %+v, want %+v", got, want)
	}
}

func TestRunLimiter_DefaultValues(t *testing.T) {
	limiter := NewRunLimiter(0, 0)

	if got := limiter.MaxConcurrent(); got != DefaultMaxConcurrentRuns {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentRuns)
	}
}
