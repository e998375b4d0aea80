// Package position opens, monitors and closes trading positions under a
// strict concurrency cap, persisting state across restarts.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/execution"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/storage"
)

// Manager errors.
var (
	// ErrMaxPositions means the concurrency cap is reached.
	ErrMaxPositions = errors.New("maximum active positions reached")

	// ErrPositionOpen means a position for the token already exists.
	ErrPositionOpen = errors.New("position already open for token")

	// ErrNoPrice means no provider could price the token at entry.
	ErrNoPrice = errors.New("no price available")

	// ErrNotStarted means the manager lifecycle has not begun.
	ErrNotStarted = errors.New("manager not started")
)

// PriceSource reads current prices; the market data aggregator satisfies it.
type PriceSource interface {
	GetPrice(ctx context.Context, address string) (float64, error)
}

// Config holds the risk parameters of the manager.
type Config struct {
	// MaxPositions caps concurrently monitored positions.
	MaxPositions int

	// StopLossPct is the loss percentage that triggers a full exit.
	StopLossPct float64

	// TakeProfitPct is the gain percentage that triggers the one-time
	// partial exit.
	TakeProfitPct float64

	// TakeProfitSellPct is the share of the holding sold at take-profit.
	TakeProfitSellPct float64

	// SlippageBps is passed through to trade execution.
	SlippageBps int

	// MonitorInterval is the price check cadence per position.
	MonitorInterval time.Duration

	// MaxHold force-closes positions older than this.
	MaxHold time.Duration

	// BaseMint is the currency positions are funded from and sold into.
	BaseMint string
}

type monitorTask struct {
	id     string
	cancel context.CancelFunc
}

// Manager owns all positions. Each active position gets its own monitoring
// goroutine; position mutation happens only under the manager lock, and
// every mutation is followed by a serialized write of the full position
// file.
type Manager struct {
	cfg     Config
	exec    execution.Executor
	prices  PriceSource
	store   storage.PositionStore
	log     *zap.SugaredLogger
	metrics *observability.Metrics
	now     func() time.Time

	mu        sync.Mutex
	positions map[string]*domain.Position
	tasks     map[string]*monitorTask
	pending   map[string]struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool

	wg        sync.WaitGroup
	persistMu sync.Mutex
}

// NewManager creates a Manager.
func NewManager(cfg Config, exec execution.Executor, prices PriceSource, store storage.PositionStore, log *zap.SugaredLogger, metrics *observability.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 15 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		exec:      exec,
		prices:    prices,
		store:     store,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
		positions: make(map[string]*domain.Position),
		tasks:     make(map[string]*monitorTask),
		pending:   make(map[string]struct{}),
	}
}

// Start loads persisted positions, reconciles them with the wallet and
// resumes monitoring.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.started = true
	m.mu.Unlock()

	return m.recover(ctx)
}

// Shutdown stops all monitoring, waiting up to grace for in-flight checks,
// and writes a final snapshot.
func (m *Manager) Shutdown(grace time.Duration) {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		m.log.Warnw("shutdown grace expired with monitors still running")
	}

	ctx, cancelPersist := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPersist()
	m.persist(ctx)
	m.log.Infow("position manager stopped")
}

// CanAddPosition reports whether the concurrency cap allows another entry.
func (m *Manager) CanAddPosition() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked()+len(m.pending) < m.cfg.MaxPositions
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, p := range m.positions {
		if p.Active() {
			n++
		}
	}
	return n
}

// ActivePositions returns copies of all monitored positions.
func (m *Manager) ActivePositions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if p.Active() {
			out = append(out, *p)
		}
	}
	return out
}

// SnipeToken buys the token with investment units of the base currency and
// begins monitoring it.
func (m *Manager) SnipeToken(ctx context.Context, tokenAddress string, investment float64) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if p, ok := m.positions[tokenAddress]; ok && p.Active() {
		m.mu.Unlock()
		return ErrPositionOpen
	}
	if _, ok := m.pending[tokenAddress]; ok {
		m.mu.Unlock()
		return ErrPositionOpen
	}
	if m.activeCountLocked()+len(m.pending) >= m.cfg.MaxPositions {
		m.mu.Unlock()
		return ErrMaxPositions
	}
	// Reserve the slot before the trade so concurrent snipes cannot
	// overshoot the cap.
	m.pending[tokenAddress] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, tokenAddress)
		m.mu.Unlock()
	}()

	fail := func(err error) error {
		if m.metrics != nil {
			m.metrics.SnipesTotal.WithLabelValues("failed").Inc()
		}
		return err
	}

	price, err := m.prices.GetPrice(ctx, tokenAddress)
	if err != nil {
		return fail(fmt.Errorf("price %s: %w", tokenAddress, err))
	}
	if price <= 0 {
		return fail(fmt.Errorf("%w: %s", ErrNoPrice, tokenAddress))
	}

	txID, err := m.exec.ExecuteTrade(ctx, m.cfg.BaseMint, tokenAddress, investment, m.cfg.SlippageBps)
	if err != nil {
		return fail(fmt.Errorf("buy %s: %w", tokenAddress, err))
	}

	now := m.now()
	pos := &domain.Position{
		TokenAddress:      tokenAddress,
		EntryPrice:        price,
		EntryTime:         now,
		StopLossPrice:     price * (1 - m.cfg.StopLossPct/100),
		TakeProfitPrice:   price * (1 + m.cfg.TakeProfitPct/100),
		Monitoring:        true,
		InitialInvestment: investment,
	}

	m.mu.Lock()
	m.positions[tokenAddress] = pos
	m.startMonitorLocked(tokenAddress)
	m.mu.Unlock()

	m.persist(ctx)
	if m.metrics != nil {
		m.metrics.SnipesTotal.WithLabelValues("opened").Inc()
		m.metrics.PositionsOpen.Set(float64(m.activeCount()))
	}
	m.log.Infow("position opened",
		"token", tokenAddress, "tx", txID, "entryPrice", price,
		"stopLoss", pos.StopLossPrice, "takeProfit", pos.TakeProfitPrice,
		"investment", investment)
	return nil
}

func (m *Manager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked()
}

// startMonitorLocked spawns the monitoring goroutine. Caller holds m.mu.
func (m *Manager) startMonitorLocked(tokenAddress string) {
	if _, ok := m.tasks[tokenAddress]; ok {
		return
	}
	taskCtx, cancel := context.WithCancel(m.ctx)
	task := &monitorTask{id: uuid.NewString(), cancel: cancel}
	m.tasks[tokenAddress] = task

	m.wg.Add(1)
	go m.monitor(taskCtx, tokenAddress, task.id)
}

func (m *Manager) monitor(ctx context.Context, tokenAddress, taskID string) {
	defer m.wg.Done()
	m.log.Debugw("monitoring started", "token", tokenAddress, "task", taskID)

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := m.checkPosition(ctx, tokenAddress); done {
				return
			}
		}
	}
}

// checkPosition runs one monitoring tick. Returns true when the position is
// closed and the monitor should stop.
func (m *Manager) checkPosition(ctx context.Context, tokenAddress string) bool {
	m.mu.Lock()
	p, ok := m.positions[tokenAddress]
	if !ok || !p.Active() {
		m.mu.Unlock()
		return true
	}
	snapshot := *p
	m.mu.Unlock()

	price, err := m.prices.GetPrice(ctx, tokenAddress)
	if err != nil || price <= 0 {
		// A pricing gap must never trigger an exit.
		m.log.Debugw("price unavailable, skipping tick", "token", tokenAddress, "error", err)
		return false
	}

	switch {
	case !snapshot.TookProfit && snapshot.TakeProfitPrice > 0 && price >= snapshot.TakeProfitPrice:
		m.takeProfit(ctx, tokenAddress, price)
		return false
	case snapshot.StopLossPrice > 0 && price <= snapshot.StopLossPrice:
		return m.closePosition(ctx, tokenAddress, price, domain.ExitReasonStopLoss)
	case snapshot.Age(m.now()) >= m.cfg.MaxHold:
		return m.closePosition(ctx, tokenAddress, price, domain.ExitReasonTimeLimit)
	}
	return false
}

// takeProfit sells the configured share of the holding once, then rebases
// the position: the new entry is the current price, the stop-loss is
// disarmed and the remainder rides until the time limit.
func (m *Manager) takeProfit(ctx context.Context, tokenAddress string, price float64) {
	balance, err := m.exec.GetTokenBalance(ctx, tokenAddress)
	if err != nil {
		m.log.Errorw("take-profit balance read failed", "token", tokenAddress, "error", err)
		return
	}
	sellAmount := balance * m.cfg.TakeProfitSellPct / 100
	if sellAmount > 0 {
		txID, err := m.exec.ExecuteTrade(ctx, tokenAddress, m.cfg.BaseMint, sellAmount, m.cfg.SlippageBps)
		if err != nil {
			m.log.Errorw("take-profit sell failed", "token", tokenAddress, "error", err)
			return
		}
		m.log.Infow("take-profit executed",
			"token", tokenAddress, "tx", txID, "price", price, "sold", sellAmount)
	}

	m.mu.Lock()
	if p, ok := m.positions[tokenAddress]; ok {
		p.TookProfit = true
		p.EntryPrice = price
		p.StopLossPrice = 0
	}
	m.mu.Unlock()

	m.persist(ctx)
	if m.metrics != nil {
		m.metrics.PositionsClosed.WithLabelValues(domain.ExitReasonTakeProfit).Inc()
	}
}

// closePosition sells the entire holding and retires the position.
func (m *Manager) closePosition(ctx context.Context, tokenAddress string, price float64, reason string) bool {
	balance, err := m.exec.GetTokenBalance(ctx, tokenAddress)
	if err != nil {
		m.log.Errorw("exit balance read failed", "token", tokenAddress, "error", err)
		return false
	}
	if balance > 0 {
		txID, err := m.exec.ExecuteTrade(ctx, tokenAddress, m.cfg.BaseMint, balance, m.cfg.SlippageBps)
		if err != nil {
			m.log.Errorw("exit sell failed", "token", tokenAddress, "reason", reason, "error", err)
			return false
		}
		m.log.Infow("position closed",
			"token", tokenAddress, "tx", txID, "reason", reason, "price", price, "sold", balance)
	} else {
		m.log.Infow("position closed with empty balance", "token", tokenAddress, "reason", reason)
	}

	m.mu.Lock()
	if p, ok := m.positions[tokenAddress]; ok {
		p.Monitoring = false
	}
	if task, ok := m.tasks[tokenAddress]; ok {
		task.cancel()
		delete(m.tasks, tokenAddress)
	}
	m.mu.Unlock()

	m.persist(ctx)
	if m.metrics != nil {
		m.metrics.PositionsClosed.WithLabelValues(reason).Inc()
		m.metrics.PositionsOpen.Set(float64(m.activeCount()))
	}
	return true
}

// persist writes the full position set. Writes are serialized so concurrent
// monitors cannot interleave snapshots out of order.
func (m *Manager) persist(ctx context.Context) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	snapshot := make([]*domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		copied := *p
		snapshot = append(snapshot, &copied)
	}
	m.mu.Unlock()

	if err := m.store.Save(ctx, snapshot); err != nil {
		if m.metrics != nil {
			m.metrics.PersistenceFails.Inc()
		}
		m.log.Errorw("persist positions", "error", err)
	}
}

// Exit levels for positions synthesized during wallet reconciliation.
const (
	adoptedStopLossPct   = 50.0
	adoptedTakeProfitPct = 200.0
)

// recover reloads persisted positions, drops those the wallet no longer
// holds, adopts unknown wallet holdings as fresh positions and resumes
// monitoring for everything active.
func (m *Manager) recover(ctx context.Context) error {
	stored, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	holdings, err := m.exec.GetAllWalletTokens(ctx)
	if err != nil {
		return fmt.Errorf("read wallet: %w", err)
	}
	held := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		held[h.Address] = h.Balance
	}

	m.mu.Lock()
	for _, p := range stored {
		pos := *p
		if pos.Monitoring && held[pos.TokenAddress] <= 0 {
			// Sold outside the engine while it was down.
			pos.Monitoring = false
			m.log.Infow("dropping position no longer in wallet", "token", pos.TokenAddress)
		}
		m.positions[pos.TokenAddress] = &pos
	}

	// Adopt wallet tokens the engine has no record of, up to the cap.
	for _, h := range holdings {
		if h.Address == m.cfg.BaseMint || h.Balance <= 0 {
			continue
		}
		if _, ok := m.positions[h.Address]; ok {
			continue
		}
		if m.activeCountLocked() >= m.cfg.MaxPositions {
			m.log.Warnw("wallet token not adopted, position cap reached", "token", h.Address)
			continue
		}

		price, err := m.prices.GetPrice(ctx, h.Address)
		if err != nil || price <= 0 {
			m.log.Warnw("wallet token not adopted, unpriceable", "token", h.Address, "error", err)
			continue
		}
		// Fixed conservative exits: the real entry is unknown, so the
		// operator's configured percentages do not apply here.
		m.positions[h.Address] = &domain.Position{
			TokenAddress:      h.Address,
			EntryPrice:        price,
			EntryTime:         m.now().Add(-time.Hour),
			StopLossPrice:     price * (1 - adoptedStopLossPct/100),
			TakeProfitPrice:   price * (1 + adoptedTakeProfitPct/100),
			Monitoring:        true,
			InitialInvestment: h.Balance * price,
		}
		m.log.Infow("adopted wallet token as position", "token", h.Address, "price", price)
	}

	resumed := 0
	for addr, p := range m.positions {
		if p.Active() {
			m.startMonitorLocked(addr)
			resumed++
		}
	}
	m.mu.Unlock()

	m.persist(ctx)
	if m.metrics != nil {
		m.metrics.PositionsOpen.Set(float64(resumed))
	}
	m.log.Infow("position recovery complete", "resumed", resumed, "stored", len(stored))
	return nil
}
