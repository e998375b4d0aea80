package marketdata

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum inter-request spacing plus an optional sliding
// window cap for one provider. Callers beyond QueueSize waiting for a slot
// are rejected with ErrQueueFull instead of blocking indefinitely.
//
// Acquire reserves a send slot under the lock and then sleeps until the
// reserved instant, so spacing holds even for concurrent callers.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	windowCap   int
	windowLen   time.Duration
	queueSize   int

	nextFree time.Time
	window   []time.Time // reserved send instants, ascending
	waiting  int
}

// NewLimiter creates a limiter. windowCap == 0 disables the sliding window;
// queueSize <= 0 means no caller ever waits in a queue (only immediate
// slots are granted).
func NewLimiter(minInterval, windowLen time.Duration, windowCap, queueSize int) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		windowCap:   windowCap,
		windowLen:   windowLen,
		queueSize:   queueSize,
	}
}

// Acquire blocks until the caller may issue a request, or fails fast with
// ErrQueueFull when the wait queue is saturated.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()

	now := time.Now()
	target := now
	if l.nextFree.After(target) {
		target = l.nextFree
	}

	if l.windowCap > 0 {
		cutoff := target.Add(-l.windowLen)
		i := 0
		for i < len(l.window) && !l.window[i].After(cutoff) {
			i++
		}
		l.window = l.window[i:]

		if len(l.window) >= l.windowCap {
			freed := l.window[len(l.window)-l.windowCap].Add(l.windowLen)
			if freed.After(target) {
				target = freed
			}
		}
	}

	wait := target.Sub(now)
	if wait > 0 && l.waiting >= l.queueSize {
		l.mu.Unlock()
		return ErrQueueFull
	}

	l.nextFree = target.Add(l.minInterval)
	if l.windowCap > 0 {
		l.window = append(l.window, target)
	}

	if wait <= 0 {
		l.mu.Unlock()
		return nil
	}

	l.waiting++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		l.mu.Lock()
		l.waiting--
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.waiting--
		l.mu.Unlock()
		return ctx.Err()
	}
}

// Waiting returns the number of callers currently queued.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiting
}
