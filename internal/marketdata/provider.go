// Package marketdata aggregates price, liquidity and token metadata from
// several upstream providers behind one cached, rate-governed interface.
package marketdata

import (
	"context"
	"errors"
	"time"

	"solana-sniper/internal/domain"
)

// Kind identifies a cacheable class of market data. Each kind has its own
// TTL and cache namespace.
type Kind string

// Data kinds.
const (
	KindPrice     Kind = "price"
	KindLiquidity Kind = "liquidity"
	KindMetrics   Kind = "metrics"
	KindQuote     Kind = "quote"
	KindInfo      Kind = "info"
	KindAge       Kind = "age"
)

// Sentinel errors for the aggregation path.
var (
	// ErrUnsupported means the provider cannot serve this kind of data.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrNoData means the provider answered but has no record of the token.
	// This is a normal negative result, never surfaced to callers.
	ErrNoData = errors.New("no data for token")

	// ErrRateLimited is a 429-equivalent response; the same provider is
	// retried with exponential backoff before falling through.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrQueueFull is the backpressure error returned when a provider's
	// bounded request queue is saturated.
	ErrQueueFull = errors.New("request queue full")
)

// Provider is one upstream source of market data. Providers return
// ErrUnsupported for kinds they cannot serve and ErrNoData when the token
// is simply unknown to them.
type Provider interface {
	Name() string

	// Price returns the USD price per token.
	Price(ctx context.Context, address string) (float64, error)

	// Liquidity returns pool liquidity backing the token.
	Liquidity(ctx context.Context, address string) (float64, error)

	// Metrics returns a full market snapshot.
	Metrics(ctx context.Context, address string) (*domain.TokenQuote, error)

	// Quote estimates the output amount of swapping amount of from into to.
	Quote(ctx context.Context, from, to string, amount float64) (float64, error)

	// Info returns token identity metadata.
	Info(ctx context.Context, address string) (*domain.TokenInfo, error)

	// Age returns the token age in days.
	Age(ctx context.Context, address string) (float64, error)
}

// ProviderSpec binds a provider to its rate governance parameters.
type ProviderSpec struct {
	Provider Provider

	// MinInterval is the minimum spacing between requests to this provider.
	MinInterval time.Duration

	// WindowCap limits requests per WindowLen; zero disables the window.
	WindowCap int
	WindowLen time.Duration

	// QueueSize bounds callers waiting on this provider's limiter.
	QueueSize int
}
