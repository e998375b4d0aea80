package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"solana-sniper/internal/observability"
)

// MarketSource is the slice of the aggregator the liquidity waiter probes;
// any one signal proves the token is tradeable.
type MarketSource interface {
	GetLiquidity(ctx context.Context, address string) (float64, error)
	GetPrice(ctx context.Context, address string) (float64, error)
	GetQuote(ctx context.Context, from, to string, amount float64) (float64, error)
}

var errLiquidityTooLow = errors.New("liquidity below threshold")

// probeAmount is the base-currency amount used for the routability check.
const probeAmount = 0.01

// LiquidityWaiter polls a fresh listing until it is tradeable or the
// attempt budget runs out. New pools often show zero liquidity for the
// first seconds after the mint appears in a feed.
type LiquidityWaiter struct {
	source      MarketSource
	baseMint    string
	threshold   float64
	maxAttempts uint64
	maxWait     time.Duration

	// excluded tokens (base currencies, stables) skip the check entirely.
	excluded map[string]struct{}

	initialInterval time.Duration
	maxInterval     time.Duration

	log     *zap.SugaredLogger
	metrics *observability.Metrics
}

// NewLiquidityWaiter creates a waiter. maxAttempts <= 0 defaults to 10;
// maxWait <= 0 means the attempt budget alone bounds the wait.
func NewLiquidityWaiter(source MarketSource, baseMint string, threshold float64, maxAttempts int, maxWait time.Duration, excluded []string, log *zap.SugaredLogger, metrics *observability.Metrics) *LiquidityWaiter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	ex := make(map[string]struct{}, len(excluded))
	for _, addr := range excluded {
		ex[addr] = struct{}{}
	}
	return &LiquidityWaiter{
		source:          source,
		baseMint:        baseMint,
		threshold:       threshold,
		maxAttempts:     uint64(maxAttempts),
		maxWait:         maxWait,
		excluded:        ex,
		initialInterval: 2 * time.Second,
		maxInterval:     15 * time.Second,
		log:             log,
		metrics:         metrics,
	}
}

// Wait blocks until the token proves tradeable. Returns false when the
// attempt budget or maxWait is exhausted; transport errors count as failed
// checks rather than aborting the wait.
func (w *LiquidityWaiter) Wait(ctx context.Context, address string) bool {
	if _, ok := w.excluded[address]; ok {
		return true
	}

	if w.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.maxWait)
		defer cancel()
	}

	check := func() error {
		if w.tradeable(ctx, address) {
			return nil
		}
		return errLiquidityTooLow
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialInterval
	b.Multiplier = 1.5
	b.MaxInterval = w.maxInterval
	b.MaxElapsedTime = 0

	err := backoff.Retry(check, backoff.WithContext(backoff.WithMaxRetries(b, w.maxAttempts-1), ctx))

	outcome := "ready"
	if err != nil {
		outcome = "timeout"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
	}
	if w.metrics != nil {
		w.metrics.LiquidityWaits.WithLabelValues(outcome).Inc()
	}
	return err == nil
}

// tradeable fires the three probes concurrently; any one positive signal
// counts. The probes are independent because providers surface new pools at
// different speeds on different endpoints.
func (w *LiquidityWaiter) tradeable(ctx context.Context, address string) bool {
	results := make(chan bool, 3)

	go func() {
		liq, err := w.source.GetLiquidity(ctx, address)
		results <- err == nil && liq >= w.threshold
	}()
	go func() {
		price, err := w.source.GetPrice(ctx, address)
		results <- err == nil && price > 0
	}()
	go func() {
		if w.baseMint == "" {
			results <- false
			return
		}
		out, err := w.source.GetQuote(ctx, w.baseMint, address, probeAmount)
		results <- err == nil && out > 0
	}()

	ok := false
	for i := 0; i < 3; i++ {
		if <-results {
			ok = true
		}
	}
	if !ok {
		w.log.Debugw("token not tradeable yet", "token", address)
	}
	return ok
}
