package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLimiterEnforcesMinInterval(t *testing.T) {
	l := NewLimiter(50*time.Millisecond, 0, 0, 10)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond {
		t.Errorf("3 acquires took %v, want >= 100ms spacing", elapsed)
	}
}

func TestLimiterConcurrentSpacing(t *testing.T) {
	l := NewLimiter(20*time.Millisecond, 0, 0, 20)
	ctx := context.Background()

	var mu sync.Mutex
	var instants []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			instants = append(instants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := range instants {
		for j := i + 1; j < len(instants); j++ {
			gap := instants[j].Sub(instants[i])
			if gap < 0 {
				gap = -gap
			}
			if gap < 15*time.Millisecond {
				t.Fatalf("acquires %v apart, want >= ~20ms", gap)
			}
		}
	}
}

func TestLimiterQueueFull(t *testing.T) {
	l := NewLimiter(time.Minute, 0, 0, 1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	// Second caller queues for the minute-long slot.
	queued := make(chan error, 1)
	go func() {
		cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		queued <- l.Acquire(cctx)
	}()

	// Wait for the goroutine to occupy the single queue slot.
	deadline := time.Now().Add(time.Second)
	for l.Waiting() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.Waiting() != 1 {
		t.Fatal("expected one queued caller")
	}

	if err := l.Acquire(ctx); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Acquire with full queue = %v, want ErrQueueFull", err)
	}

	if err := <-queued; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("queued Acquire = %v, want deadline exceeded", err)
	}
}

func TestLimiterWindowCap(t *testing.T) {
	// Two requests per 80ms window; the third must wait for the window.
	l := NewLimiter(0, 80*time.Millisecond, 2, 10)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("third acquire after %v, want to wait out the window", elapsed)
	}
}

func TestLimiterContextCancel(t *testing.T) {
	l := NewLimiter(time.Minute, 0, 0, 5)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want context.Canceled", err)
	}
}
