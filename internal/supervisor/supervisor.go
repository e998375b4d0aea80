// Package supervisor keeps the account event subscription alive for the
// lifetime of the process, re-establishing it with backoff after any drop.
package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
)

var errSubscriptionClosed = errors.New("subscription channel closed")

// EventHandler receives every log notification from the live subscription.
type EventHandler func(ctx context.Context, event solana.LogNotification)

// Config tunes the supervision loop.
type Config struct {
	// Mentions is the address filter for the logs subscription; typically
	// the wallet public key.
	Mentions []string

	// HealthInterval is how often the connection is probed while the
	// subscription is idle.
	HealthInterval time.Duration

	// InitialBackoff and MaxBackoff bound the resubscribe delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Supervisor owns one logs subscription. Run blocks until the context ends,
// resubscribing whenever the channel closes or the health probe finds the
// connection dead. Events never stop the loop; only context cancellation
// does.
type Supervisor struct {
	ws      solana.WSClient
	cfg     Config
	onEvent EventHandler
	log     *zap.SugaredLogger
	metrics *observability.Metrics
}

// New creates a Supervisor.
func New(ws solana.WSClient, cfg Config, onEvent EventHandler, log *zap.SugaredLogger, metrics *observability.Metrics) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	return &Supervisor{ws: ws, cfg: cfg, onEvent: onEvent, log: log, metrics: metrics}
}

// Run blocks, keeping the subscription alive until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	first := true
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !first {
			if s.metrics != nil {
				s.metrics.WSReconnects.Inc()
			}
			wait := b.NextBackOff()
			s.log.Warnw("resubscribing", "after", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		first = false

		err := s.serve(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.log.Warnw("subscription lost", "error", err)
	}
}

// serve establishes one subscription and pumps events until it dies.
func (s *Supervisor) serve(ctx context.Context) error {
	events, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: s.cfg.Mentions})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.SubscriptionUp.Set(1)
		defer s.metrics.SubscriptionUp.Set(0)
	}
	s.log.Infow("subscription established", "mentions", s.cfg.Mentions)

	health := time.NewTicker(s.cfg.HealthInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return errSubscriptionClosed
			}
			if s.onEvent != nil {
				s.onEvent(ctx, event)
			}
		case <-health.C:
			if !s.ws.Connected() {
				return errors.New("health check: connection down")
			}
		}
	}
}
