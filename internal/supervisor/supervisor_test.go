package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solana-sniper/internal/solana"
)

type scriptedWS struct {
	mu         sync.Mutex
	subscribes int
	channels   []chan solana.LogNotification
	subErr     error
	connected  bool
}

func (w *scriptedWS) SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribes++
	if w.subErr != nil {
		return nil, w.subErr
	}
	ch := make(chan solana.LogNotification, 8)
	w.channels = append(w.channels, ch)
	w.connected = true
	return ch, nil
}

func (w *scriptedWS) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *scriptedWS) Close() error { return nil }

func (w *scriptedWS) current() chan solana.LogNotification {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.channels) == 0 {
		return nil
	}
	return w.channels[len(w.channels)-1]
}

func (w *scriptedWS) subscribeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subscribes
}

func fastConfig() Config {
	return Config{
		Mentions:       []string{"Wallet111"},
		HealthInterval: 10 * time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestSupervisorDeliversEvents(t *testing.T) {
	ws := &scriptedWS{}
	var got atomic.Int64
	s := New(ws, fastConfig(), func(ctx context.Context, event solana.LogNotification) {
		got.Add(1)
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for ws.current() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ch := ws.current()
	if ch == nil {
		t.Fatal("subscription never established")
	}
	ch <- solana.LogNotification{Signature: "sig1"}
	ch <- solana.LogNotification{Signature: "sig2"}

	for got.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got.Load() != 2 {
		t.Errorf("events delivered = %d, want 2", got.Load())
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestSupervisorResubscribesAfterChannelClose(t *testing.T) {
	ws := &scriptedWS{}
	s := New(ws, fastConfig(), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for ws.current() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	first := ws.current()
	if first == nil {
		t.Fatal("subscription never established")
	}
	close(first)

	for ws.subscribeCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ws.subscribeCount() < 2 {
		t.Error("expected a resubscribe after the channel closed")
	}
}

func TestSupervisorResubscribesWhenHealthCheckFails(t *testing.T) {
	ws := &scriptedWS{}
	s := New(ws, fastConfig(), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for ws.current() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ws.mu.Lock()
	ws.connected = false
	ws.mu.Unlock()

	for ws.subscribeCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ws.subscribeCount() < 2 {
		t.Error("expected a resubscribe after failed health check")
	}
}

func TestSupervisorRetriesFailedSubscribe(t *testing.T) {
	ws := &scriptedWS{subErr: errors.New("dial refused")}
	s := New(ws, fastConfig(), nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if ws.subscribeCount() < 3 {
		t.Errorf("subscribe attempts = %d, want repeated retries", ws.subscribeCount())
	}
}
