package discovery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// rampingSource exposes liquidity after a number of probe rounds; price and
// quote signals are controlled separately.
type rampingSource struct {
	liqCalls atomic.Int64
	readyAt  int64 // liquidity probe round at which liquidity appears
	amount   float64

	price float64
	quote float64
}

func (r *rampingSource) GetLiquidity(ctx context.Context, address string) (float64, error) {
	if r.liqCalls.Add(1) >= r.readyAt {
		return r.amount, nil
	}
	return 0, nil
}

func (r *rampingSource) GetPrice(ctx context.Context, address string) (float64, error) {
	return r.price, nil
}

func (r *rampingSource) GetQuote(ctx context.Context, from, to string, amount float64) (float64, error) {
	return r.quote, nil
}

func fastWaiter(source MarketSource, threshold float64, maxAttempts int, excluded []string) *LiquidityWaiter {
	w := NewLiquidityWaiter(source, "base-mint", threshold, maxAttempts, 0, excluded, nil, nil)
	w.initialInterval = time.Millisecond
	w.maxInterval = 5 * time.Millisecond
	return w
}

func TestWaitSucceedsOnceLiquidityArrives(t *testing.T) {
	source := &rampingSource{readyAt: 3, amount: 5000}
	w := fastWaiter(source, 1000, 10, nil)

	if !w.Wait(context.Background(), "mint") {
		t.Error("Wait = false, want true once liquidity ramps")
	}
	if n := source.liqCalls.Load(); n != 3 {
		t.Errorf("liquidity checks = %d, want 3", n)
	}
}

func TestWaitAnySignalSuffices(t *testing.T) {
	// No liquidity at all, but the token is priceable.
	source := &rampingSource{readyAt: 100, price: 0.004}
	w := fastWaiter(source, 1000, 3, nil)

	if !w.Wait(context.Background(), "mint") {
		t.Error("Wait = false, want true from the price signal alone")
	}

	// Quote routability alone also counts.
	source = &rampingSource{readyAt: 100, quote: 12.5}
	w = fastWaiter(source, 1000, 3, nil)
	if !w.Wait(context.Background(), "mint") {
		t.Error("Wait = false, want true from the quote signal alone")
	}
}

func TestWaitGivesUpAfterMaxAttempts(t *testing.T) {
	source := &rampingSource{readyAt: 100, amount: 5000}
	w := fastWaiter(source, 1000, 4, nil)

	if w.Wait(context.Background(), "mint") {
		t.Error("Wait = true, want false when liquidity never arrives")
	}
	if n := source.liqCalls.Load(); n != 4 {
		t.Errorf("liquidity checks = %d, want 4", n)
	}
}

func TestWaitSkipsExcludedTokens(t *testing.T) {
	source := &rampingSource{readyAt: 100}
	w := fastWaiter(source, 1000, 10, []string{"base-currency"})

	if !w.Wait(context.Background(), "base-currency") {
		t.Error("Wait = false for excluded token, want true")
	}
	if n := source.liqCalls.Load(); n != 0 {
		t.Errorf("excluded token triggered %d checks, want 0", n)
	}
}

func TestWaitHonorsMaxWait(t *testing.T) {
	source := &rampingSource{readyAt: 1000, amount: 5000}
	w := NewLiquidityWaiter(source, "base-mint", 1000, 1000, 30*time.Millisecond, nil, nil, nil)

	start := time.Now()
	if w.Wait(context.Background(), "mint") {
		t.Error("Wait = true, want false at maxWait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait ran %v, want bounded by 30ms maxWait", elapsed)
	}
}

func TestWaitHonorsContextCancel(t *testing.T) {
	source := &rampingSource{readyAt: 1000, amount: 5000}
	w := NewLiquidityWaiter(source, "base-mint", 1000, 10, 0, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- w.Wait(ctx, "mint") }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("Wait = true after cancel, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after context cancel")
	}
}
