package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
)

// noData marks a provider answer of "token unknown" so the circuit breaker
// does not count it as a failure.
var noData = new(struct{})

// registeredProvider couples a provider with its limiter and breaker.
type registeredProvider struct {
	provider Provider
	limiter  *Limiter
	breaker  *gobreaker.CircuitBreaker
	spec     ProviderSpec
}

type inflightCall struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Options configures the Aggregator.
type Options struct {
	// Providers in priority order; the first provider with data wins.
	Providers []ProviderSpec

	// TTLs overrides cache TTLs per kind.
	TTLs map[Kind]time.Duration

	// RateLimitRetries bounds same-provider retries on a 429.
	RateLimitRetries int

	Logger  *zap.SugaredLogger
	Metrics *observability.Metrics
}

// Aggregator resolves market data by querying ordered providers with
// caching, per-key request coalescing and per-provider rate governance.
// Absence of data is a normal zero result, not an error; only exhausted
// transport failures surface to the caller.
type Aggregator struct {
	providers []*registeredProvider
	cache     *ttlCache
	retries   uint64
	log       *zap.SugaredLogger
	metrics   *observability.Metrics

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	retries := opts.RateLimitRetries
	if retries <= 0 {
		retries = 15
	}

	a := &Aggregator{
		cache:    newTTLCache(opts.TTLs),
		retries:  uint64(retries),
		log:      log,
		metrics:  opts.Metrics,
		inflight: make(map[string]*inflightCall),
	}

	for _, spec := range opts.Providers {
		breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    spec.Provider.Name(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
		a.providers = append(a.providers, &registeredProvider{
			provider: spec.Provider,
			limiter:  NewLimiter(spec.MinInterval, spec.WindowLen, spec.WindowCap, spec.QueueSize),
			breaker:  breaker,
			spec:     spec,
		})
	}

	return a
}

// GetPrice returns the USD price for a token, zero if unknown anywhere.
func (a *Aggregator) GetPrice(ctx context.Context, address string) (float64, error) {
	v, err := a.lookup(ctx, KindPrice, address, func(ctx context.Context, p Provider) (interface{}, error) {
		price, err := p.Price(ctx, address)
		if err != nil {
			return nil, err
		}
		if price <= 0 {
			return nil, ErrNoData
		}
		return price, nil
	})
	if err != nil || v == nil {
		return 0, err
	}
	return v.(float64), nil
}

// GetLiquidity returns pool liquidity for a token, zero if unknown.
func (a *Aggregator) GetLiquidity(ctx context.Context, address string) (float64, error) {
	v, err := a.lookup(ctx, KindLiquidity, address, func(ctx context.Context, p Provider) (interface{}, error) {
		liq, err := p.Liquidity(ctx, address)
		if err != nil {
			return nil, err
		}
		if liq <= 0 {
			return nil, ErrNoData
		}
		return liq, nil
	})
	if err != nil || v == nil {
		return 0, err
	}
	return v.(float64), nil
}

// GetMetrics returns a full market snapshot. All-zero fields mean no
// provider knows the token.
func (a *Aggregator) GetMetrics(ctx context.Context, address string) (*domain.TokenQuote, error) {
	v, err := a.lookup(ctx, KindMetrics, address, func(ctx context.Context, p Provider) (interface{}, error) {
		q, err := p.Metrics(ctx, address)
		if err != nil {
			return nil, err
		}
		if q == nil || (q.Price <= 0 && q.Liquidity <= 0) {
			return nil, ErrNoData
		}
		return q, nil
	})
	if err != nil {
		return &domain.TokenQuote{Address: address}, err
	}
	if v == nil {
		return &domain.TokenQuote{Address: address}, nil
	}
	return v.(*domain.TokenQuote), nil
}

// GetQuote estimates the output of swapping amount of from into to, zero if
// no route exists.
func (a *Aggregator) GetQuote(ctx context.Context, from, to string, amount float64) (float64, error) {
	key := fmt.Sprintf("%s:%s:%g", from, to, amount)
	v, err := a.lookup(ctx, KindQuote, key, func(ctx context.Context, p Provider) (interface{}, error) {
		out, err := p.Quote(ctx, from, to, amount)
		if err != nil {
			return nil, err
		}
		if out <= 0 {
			return nil, ErrNoData
		}
		return out, nil
	})
	if err != nil || v == nil {
		return 0, err
	}
	return v.(float64), nil
}

// GetTokenInfo returns identity metadata, nil if unknown.
func (a *Aggregator) GetTokenInfo(ctx context.Context, address string) (*domain.TokenInfo, error) {
	v, err := a.lookup(ctx, KindInfo, address, func(ctx context.Context, p Provider) (interface{}, error) {
		info, err := p.Info(ctx, address)
		if err != nil {
			return nil, err
		}
		if info == nil || info.Address == "" {
			return nil, ErrNoData
		}
		return info, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*domain.TokenInfo), nil
}

// GetTokenAge returns the token age in days, zero if undeterminable.
func (a *Aggregator) GetTokenAge(ctx context.Context, address string) (float64, error) {
	v, err := a.lookup(ctx, KindAge, address, func(ctx context.Context, p Provider) (interface{}, error) {
		age, err := p.Age(ctx, address)
		if err != nil {
			return nil, err
		}
		if age <= 0 {
			return nil, ErrNoData
		}
		return age, nil
	})
	if err != nil || v == nil {
		return 0, err
	}
	return v.(float64), nil
}

// lookup is the shared resolution path: cache, coalescing, then the ordered
// provider chain. A nil value with nil error is the "no data anywhere"
// result; typed wrappers map it to their zero value.
func (a *Aggregator) lookup(ctx context.Context, kind Kind, key string, fetch func(context.Context, Provider) (interface{}, error)) (interface{}, error) {
	if v, ok := a.cache.Get(kind, key); ok {
		if a.metrics != nil {
			a.metrics.CacheHits.WithLabelValues(string(kind)).Inc()
		}
		return v, nil
	}
	if a.metrics != nil {
		a.metrics.CacheMisses.WithLabelValues(string(kind)).Inc()
	}

	coalesceKey := string(kind) + ":" + key

	a.inflightMu.Lock()
	if call, ok := a.inflight[coalesceKey]; ok {
		a.inflightMu.Unlock()
		if a.metrics != nil {
			a.metrics.CoalescedCalls.Inc()
		}
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	a.inflight[coalesceKey] = call
	a.inflightMu.Unlock()

	value, err := a.fetchFromProviders(ctx, kind, fetch)
	if err == nil && value != nil {
		a.cache.Set(kind, key, value)
	}

	call.value, call.err = value, err

	a.inflightMu.Lock()
	delete(a.inflight, coalesceKey)
	a.inflightMu.Unlock()
	close(call.done)

	return value, err
}

// fetchFromProviders walks the provider chain in priority order.
func (a *Aggregator) fetchFromProviders(ctx context.Context, kind Kind, fetch func(context.Context, Provider) (interface{}, error)) (interface{}, error) {
	var lastErr error

	for _, rp := range a.providers {
		value, err := a.callProvider(ctx, rp, kind, fetch)
		if err == nil {
			return value, nil
		}

		switch {
		case errors.Is(err, ErrUnsupported):
			// Provider cannot serve this kind; not evidence either way.
		case errors.Is(err, ErrNoData):
			// Normal negative result.
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			a.log.Debugw("provider failed, falling through",
				"provider", rp.provider.Name(), "kind", kind, "error", err)
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed: %w", lastErr)
	}
	return nil, nil
}

// callProvider applies rate governance and the circuit breaker, retrying
// only 429s with exponential backoff before giving up on this provider.
func (a *Aggregator) callProvider(ctx context.Context, rp *registeredProvider, kind Kind, fetch func(context.Context, Provider) (interface{}, error)) (interface{}, error) {
	var value interface{}

	operation := func() error {
		if err := rp.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, ErrQueueFull) {
				if a.metrics != nil {
					a.metrics.QueueRejections.WithLabelValues(rp.provider.Name()).Inc()
				}
			}
			return backoff.Permanent(err)
		}

		start := time.Now()
		v, err := rp.breaker.Execute(func() (interface{}, error) {
			v, err := fetch(ctx, rp.provider)
			if errors.Is(err, ErrNoData) {
				// Not a provider failure; keep the breaker closed.
				return noData, nil
			}
			if errors.Is(err, ErrUnsupported) {
				return nil, err
			}
			return v, err
		})

		if a.metrics != nil {
			a.metrics.ProviderLatency.WithLabelValues(rp.provider.Name()).Observe(time.Since(start).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
			} else if v == noData {
				status = "no_data"
			}
			a.metrics.ProviderRequests.WithLabelValues(rp.provider.Name(), string(kind), status).Inc()
		}

		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		if v == noData {
			return backoff.Permanent(ErrNoData)
		}

		value = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = rp.spec.MinInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.Multiplier = 1.5
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, a.retries), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Unwrap()
		}
		return nil, err
	}
	return value, nil
}
