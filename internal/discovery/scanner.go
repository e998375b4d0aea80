package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/marketdata"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// MarketData is the slice of the aggregator the scanner needs.
type MarketData interface {
	GetMetrics(ctx context.Context, address string) (*domain.TokenQuote, error)
	GetTokenInfo(ctx context.Context, address string) (*domain.TokenInfo, error)
}

// TokenCallback receives a validated, liquid token candidate.
type TokenCallback func(ctx context.Context, info *domain.TokenInfo, quote *domain.TokenQuote)

// ScannerConfig configures the discovery loop.
type ScannerConfig struct {
	Interval time.Duration

	// ErrorInterval reschedules the next cycle sooner after a cycle where
	// every feed failed.
	ErrorInterval time.Duration

	// Excluded addresses (base currencies, stables) are never candidates.
	Excluded []string

	// MinAgeHours and MaxAgeHours bound the acceptable token age; zero
	// disables the corresponding bound.
	MinAgeHours float64
	MaxAgeHours float64

	Gates marketdata.GateConfig
}

// Scanner polls listing feeds on an interval, drops everything already in
// the persisted known-set, validates survivors against the entry gates and
// waits out the liquidity ramp before invoking the callback. Every address
// that reaches validation is marked known first, so a crash never replays
// a candidate.
type Scanner struct {
	feeds   []Feed
	data    MarketData
	chain   solana.RPCClient // nil skips on-chain validation
	waiter  *LiquidityWaiter
	store   storage.KnownTokenStore
	onToken TokenCallback
	cfg     ScannerConfig
	log     *zap.SugaredLogger
	metrics *observability.Metrics

	excluded map[string]struct{}

	mu      sync.Mutex
	known   map[string]struct{}
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScanner creates a Scanner. chain may be nil to skip on-chain checks.
func NewScanner(feeds []Feed, data MarketData, chain solana.RPCClient, waiter *LiquidityWaiter, store storage.KnownTokenStore, cfg ScannerConfig, onToken TokenCallback, log *zap.SugaredLogger, metrics *observability.Metrics) *Scanner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ErrorInterval <= 0 {
		cfg.ErrorInterval = cfg.Interval
	}
	excluded := make(map[string]struct{}, len(cfg.Excluded))
	for _, addr := range cfg.Excluded {
		excluded[addr] = struct{}{}
	}
	return &Scanner{
		feeds:    feeds,
		data:     data,
		chain:    chain,
		waiter:   waiter,
		store:    store,
		onToken:  onToken,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		excluded: excluded,
		known:    make(map[string]struct{}),
	}
}

// StartMonitoring loads the persisted known-set and starts the scan loop.
// Calling it while running is a no-op.
func (s *Scanner) StartMonitoring(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	tokens, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load known tokens: %w", err)
	}
	for _, addr := range tokens {
		s.known[addr] = struct{}{}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.KnownTokens.Set(float64(len(tokens)))
	}
	s.log.Infow("discovery started", "knownTokens", len(tokens), "feeds", len(s.feeds), "interval", s.cfg.Interval)

	s.wg.Add(1)
	go s.loop(loopCtx)
	return nil
}

// StopMonitoring stops the loop and waits for in-flight candidate work.
func (s *Scanner) StopMonitoring() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Infow("discovery stopped")
}

func (s *Scanner) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(0) // first scan runs immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			next := s.cfg.Interval
			if !s.scan(ctx) {
				// Every feed failed; retry sooner.
				next = s.cfg.ErrorInterval
			}
			timer.Reset(next)
		}
	}
}

// scan runs one cycle: fetch all feeds concurrently, mark every previously
// unseen address known and hand it to a validation goroutine. Returns false
// when no feed answered.
func (s *Scanner) scan(ctx context.Context) bool {
	type feedResult struct {
		name      string
		addresses []string
		err       error
	}

	results := make(chan feedResult, len(s.feeds))
	for _, feed := range s.feeds {
		go func(f Feed) {
			addresses, err := f.Latest(ctx)
			results <- feedResult{name: f.Name(), addresses: addresses, err: err}
		}(feed)
	}

	seen := make(map[string]struct{})
	var fresh []string
	answered := 0
	for range s.feeds {
		r := <-results
		if r.err != nil {
			s.log.Warnw("feed fetch failed", "feed", r.name, "error", r.err)
			continue
		}
		answered++
		for _, addr := range r.addresses {
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			fresh = append(fresh, addr)
		}
	}

	ok := answered > 0 || len(s.feeds) == 0
	if s.metrics != nil {
		status := "ok"
		if answered < len(s.feeds) {
			status = "degraded"
		}
		s.metrics.ScanCycles.WithLabelValues(status).Inc()
	}

	for _, addr := range fresh {
		if ctx.Err() != nil {
			return ok
		}
		if _, skip := s.excluded[addr]; skip {
			continue
		}
		if !s.markKnown(ctx, addr) {
			continue
		}
		// Validation can block on the liquidity ramp for minutes; it must
		// never hold up the next feed poll.
		s.wg.Add(1)
		go func(addr string) {
			defer s.wg.Done()
			s.processCandidate(ctx, addr)
		}(addr)
	}
	return ok
}

// markKnown returns true only for addresses not seen before, adding them to
// the set and persisting it.
func (s *Scanner) markKnown(ctx context.Context, addr string) bool {
	s.mu.Lock()
	if _, ok := s.known[addr]; ok {
		s.mu.Unlock()
		return false
	}
	s.known[addr] = struct{}{}
	snapshot := make([]string, 0, len(s.known))
	for a := range s.known {
		snapshot = append(snapshot, a)
	}
	s.mu.Unlock()

	sort.Strings(snapshot)
	if err := s.store.Save(ctx, snapshot); err != nil {
		s.log.Errorw("persist known tokens", "error", err)
	}
	if s.metrics != nil {
		s.metrics.KnownTokens.Set(float64(len(snapshot)))
	}
	return true
}

func (s *Scanner) processCandidate(ctx context.Context, addr string) {
	reject := func(reason string) {
		if s.metrics != nil {
			s.metrics.TokensRejected.WithLabelValues(reason).Inc()
		}
		s.log.Debugw("candidate rejected", "token", addr, "reason", reason)
	}

	if !solana.ValidateAddress(addr) {
		reject("invalid_address")
		return
	}

	if s.chain != nil {
		account, err := s.chain.GetAccountInfo(ctx, addr)
		if err != nil {
			reject("chain_unavailable")
			return
		}
		if account == nil {
			reject("not_on_chain")
			return
		}
		if account.Owner != solana.TokenProgramID {
			reject("not_spl_mint")
			return
		}
	}

	info, err := s.data.GetTokenInfo(ctx, addr)
	if err != nil {
		reject("info_unavailable")
		return
	}
	if info == nil {
		// Metadata can lag the pool; trade on the address alone.
		info = &domain.TokenInfo{Address: addr}
	}

	quote, err := s.data.GetMetrics(ctx, addr)
	if err != nil {
		reject("metrics_unavailable")
		return
	}

	if ok, reason := marketdata.IsValidToken(info, quote, s.cfg.Gates); !ok {
		// A brand new pool legitimately has no liquidity yet; give it the
		// ramp-up window before judging.
		if reason != "no liquidity" && reason != "no price data" {
			reject("gated")
			return
		}
	}

	if s.waiter != nil && !s.waiter.Wait(ctx, addr) {
		reject("liquidity_timeout")
		return
	}

	// Re-gate on fresh numbers after the liquidity wait.
	quote, err = s.data.GetMetrics(ctx, addr)
	if err != nil {
		reject("metrics_unavailable")
		return
	}
	if ok, reason := marketdata.IsValidToken(info, quote, s.cfg.Gates); !ok {
		reject("gated")
		s.log.Debugw("candidate failed final gates", "token", addr, "reason", reason)
		return
	}

	ageHours := quote.AgeDays * 24
	if s.cfg.MinAgeHours > 0 && ageHours > 0 && ageHours < s.cfg.MinAgeHours {
		reject("too_new")
		return
	}
	if s.cfg.MaxAgeHours > 0 && ageHours > s.cfg.MaxAgeHours {
		reject("too_old")
		return
	}

	if s.metrics != nil {
		s.metrics.TokensDiscovered.Inc()
	}
	s.log.Infow("token discovered",
		"token", addr, "symbol", info.Symbol,
		"liquidity", quote.Liquidity, "price", quote.Price,
		"score", marketdata.QuickScore(quote))

	if s.onToken != nil {
		s.onToken(ctx, info, quote)
	}
}
