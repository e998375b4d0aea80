package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"solana-sniper/internal/domain"
)

const baseMint = "So11111111111111111111111111111111111111112"

type fakeExecutor struct {
	mu       sync.Mutex
	balances map[string]float64 // mint -> balance, baseMint included
	trades   []string
	tradeErr error
}

func newFakeExecutor(base float64) *fakeExecutor {
	return &fakeExecutor{balances: map[string]float64{baseMint: base}}
}

func (f *fakeExecutor) GetPublicKey() string { return "Wallet111" }

func (f *fakeExecutor) GetBalance(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[baseMint], nil
}

func (f *fakeExecutor) GetTokenBalance(ctx context.Context, mint string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[mint], nil
}

func (f *fakeExecutor) GetAllWalletTokens(ctx context.Context) ([]domain.WalletHolding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WalletHolding
	for mint, bal := range f.balances {
		if mint != baseMint && bal > 0 {
			out = append(out, domain.WalletHolding{Address: mint, Balance: bal})
		}
	}
	return out, nil
}

func (f *fakeExecutor) ExecuteTrade(ctx context.Context, from, to string, amount float64, slippageBps int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tradeErr != nil {
		return "", f.tradeErr
	}
	f.balances[from] -= amount
	f.balances[to] += amount // 1:1 fill keeps assertions simple
	f.trades = append(f.trades, from+"->"+to)
	return "tx-test", nil
}

func (f *fakeExecutor) tradeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trades)
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (f *fakePrices) GetPrice(ctx context.Context, address string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[address], nil
}

func (f *fakePrices) set(address string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[address] = price
}

type memoryPositionStore struct {
	mu        sync.Mutex
	positions []*domain.Position
}

func (m *memoryPositionStore) Save(ctx context.Context, positions []*domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = nil
	for _, p := range positions {
		copied := *p
		m.positions = append(m.positions, &copied)
	}
	return nil
}

func (m *memoryPositionStore) Load(ctx context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func testConfig() Config {
	return Config{
		MaxPositions:      3,
		StopLossPct:       50,
		TakeProfitPct:     200,
		TakeProfitSellPct: 80,
		SlippageBps:       300,
		MonitorInterval:   time.Hour, // ticks driven manually
		MaxHold:           24 * time.Hour,
		BaseMint:          baseMint,
	}
}

func startedManager(t *testing.T, cfg Config, exec *fakeExecutor, prices *fakePrices, store *memoryPositionStore) *Manager {
	t.Helper()
	m := NewManager(cfg, exec, prices, store, nil, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { m.Shutdown(time.Second) })
	return m
}

func TestSnipeSetsExitLevels(t *testing.T) {
	exec := newFakeExecutor(100)
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100}}
	m := startedManager(t, testConfig(), exec, prices, &memoryPositionStore{})

	if err := m.SnipeToken(context.Background(), "MintAAA", 1); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}

	positions := m.ActivePositions()
	if len(positions) != 1 {
		t.Fatalf("active positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.EntryPrice != 100 || p.StopLossPrice != 50 || p.TakeProfitPrice != 300 {
		t.Errorf("levels = entry %v, SL %v, TP %v; want 100, 50, 300",
			p.EntryPrice, p.StopLossPrice, p.TakeProfitPrice)
	}
}

func TestStopLossClosesFully(t *testing.T) {
	exec := newFakeExecutor(100)
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100}}
	m := startedManager(t, testConfig(), exec, prices, &memoryPositionStore{})
	ctx := context.Background()

	if err := m.SnipeToken(ctx, "MintAAA", 1); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}

	prices.set("MintAAA", 49)
	if done := m.checkPosition(ctx, "MintAAA"); !done {
		t.Error("expected monitor to stop after stop-loss")
	}

	if got := m.ActivePositions(); len(got) != 0 {
		t.Errorf("active positions = %d, want 0", len(got))
	}
	if bal, _ := exec.GetTokenBalance(ctx, "MintAAA"); bal != 0 {
		t.Errorf("token balance = %v, want 0 (full sell)", bal)
	}
}

func TestTakeProfitSellsPartialAndRebases(t *testing.T) {
	exec := newFakeExecutor(100)
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100}}
	m := startedManager(t, testConfig(), exec, prices, &memoryPositionStore{})
	ctx := context.Background()

	if err := m.SnipeToken(ctx, "MintAAA", 10); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}

	prices.set("MintAAA", 305)
	if done := m.checkPosition(ctx, "MintAAA"); done {
		t.Error("position must stay monitored after partial take-profit")
	}

	positions := m.ActivePositions()
	if len(positions) != 1 {
		t.Fatalf("active positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if !p.TookProfit {
		t.Error("TookProfit not set")
	}
	if p.EntryPrice != 305 {
		t.Errorf("entry rebased to %v, want 305", p.EntryPrice)
	}
	if p.StopLossPrice != 0 {
		t.Errorf("stop-loss = %v, want disarmed (0)", p.StopLossPrice)
	}
	if bal, _ := exec.GetTokenBalance(ctx, "MintAAA"); bal != 2 {
		t.Errorf("remaining balance = %v, want 2 (sold 80%% of 10)", bal)
	}

	// A second spike must not fire the partial again.
	trades := exec.tradeCount()
	prices.set("MintAAA", 400)
	m.checkPosition(ctx, "MintAAA")
	if exec.tradeCount() != trades {
		t.Error("take-profit fired twice")
	}
}

func TestTimeLimitClosesPosition(t *testing.T) {
	exec := newFakeExecutor(100)
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100}}
	store := &memoryPositionStore{}
	m := startedManager(t, testConfig(), exec, prices, store)
	ctx := context.Background()

	if err := m.SnipeToken(ctx, "MintAAA", 1); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if done := m.checkPosition(ctx, "MintAAA"); !done {
		t.Error("expected time-limit exit after 25h")
	}
	if got := m.ActivePositions(); len(got) != 0 {
		t.Errorf("active positions = %d, want 0", len(got))
	}
}

func TestPriceGapNeverTriggersExit(t *testing.T) {
	exec := newFakeExecutor(100)
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100}}
	m := startedManager(t, testConfig(), exec, prices, &memoryPositionStore{})
	ctx := context.Background()

	if err := m.SnipeToken(ctx, "MintAAA", 1); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}

	prices.err = errors.New("all providers failed")
	if done := m.checkPosition(ctx, "MintAAA"); done {
		t.Error("pricing failure must not close the position")
	}
	prices.err = nil
	prices.set("MintAAA", 0)
	if done := m.checkPosition(ctx, "MintAAA"); done {
		t.Error("zero price must not close the position")
	}
	if got := m.ActivePositions(); len(got) != 1 {
		t.Errorf("active positions = %d, want 1", len(got))
	}
}

func TestPositionCapEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 1
	exec := newFakeExecutor(100)
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100, "MintBBB": 50}}
	m := startedManager(t, cfg, exec, prices, &memoryPositionStore{})
	ctx := context.Background()

	if err := m.SnipeToken(ctx, "MintAAA", 1); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}
	if m.CanAddPosition() {
		t.Error("CanAddPosition = true at cap, want false")
	}
	if err := m.SnipeToken(ctx, "MintBBB", 1); !errors.Is(err, ErrMaxPositions) {
		t.Errorf("SnipeToken = %v, want ErrMaxPositions", err)
	}
	if err := m.SnipeToken(ctx, "MintAAA", 1); !errors.Is(err, ErrPositionOpen) {
		t.Errorf("duplicate SnipeToken = %v, want ErrPositionOpen", err)
	}

	// Closing frees the slot.
	prices.set("MintAAA", 10)
	m.checkPosition(ctx, "MintAAA")
	if !m.CanAddPosition() {
		t.Error("CanAddPosition = false after close, want true")
	}
	if err := m.SnipeToken(ctx, "MintBBB", 1); err != nil {
		t.Errorf("SnipeToken after close: %v", err)
	}
}

func TestRecoveryResumesPersistedPositions(t *testing.T) {
	store := &memoryPositionStore{}
	prices := &fakePrices{prices: map[string]float64{"MintAAA": 100}}
	ctx := context.Background()

	exec1 := newFakeExecutor(100)
	m1 := NewManager(testConfig(), exec1, prices, store, nil, nil)
	if err := m1.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m1.SnipeToken(ctx, "MintAAA", 1); err != nil {
		t.Fatalf("SnipeToken: %v", err)
	}
	m1.Shutdown(time.Second)

	// Restart against the same store and a wallet still holding the token.
	exec2 := newFakeExecutor(99)
	exec2.balances["MintAAA"] = 1
	m2 := NewManager(testConfig(), exec2, prices, store, nil, nil)
	if err := m2.Start(ctx); err != nil {
		t.Fatalf("restart Start: %v", err)
	}
	defer m2.Shutdown(time.Second)

	positions := m2.ActivePositions()
	if len(positions) != 1 {
		t.Fatalf("resumed positions = %d, want 1", len(positions))
	}
	if p := positions[0]; p.EntryPrice != 100 || p.StopLossPrice != 50 {
		t.Errorf("resumed levels = entry %v, SL %v; want 100, 50", p.EntryPrice, p.StopLossPrice)
	}
}

func TestRecoveryDropsPositionsNotInWallet(t *testing.T) {
	store := &memoryPositionStore{}
	store.Save(context.Background(), []*domain.Position{{
		TokenAddress: "MintGone", EntryPrice: 100, EntryTime: time.Now(),
		StopLossPrice: 50, TakeProfitPrice: 300, Monitoring: true,
	}})

	exec := newFakeExecutor(100) // wallet does not hold MintGone
	prices := &fakePrices{prices: map[string]float64{}}
	m := startedManager(t, testConfig(), exec, prices, store)

	if got := m.ActivePositions(); len(got) != 0 {
		t.Errorf("active positions = %d, want 0 for token sold externally", len(got))
	}
}

func TestRecoveryAdoptsWalletTokens(t *testing.T) {
	exec := newFakeExecutor(100)
	exec.balances["MintHeld"] = 40
	prices := &fakePrices{prices: map[string]float64{"MintHeld": 2}}
	m := startedManager(t, testConfig(), exec, prices, &memoryPositionStore{})

	positions := m.ActivePositions()
	if len(positions) != 1 {
		t.Fatalf("adopted positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.EntryPrice != 2 || p.StopLossPrice != 1 || p.TakeProfitPrice != 6 {
		t.Errorf("adopted levels = entry %v, SL %v, TP %v; want 2, 1, 6",
			p.EntryPrice, p.StopLossPrice, p.TakeProfitPrice)
	}
	if p.InitialInvestment != 80 {
		t.Errorf("InitialInvestment = %v, want 80", p.InitialInvestment)
	}
	if age := p.Age(time.Now()); age < 50*time.Minute {
		t.Errorf("adopted position age = %v, want about an hour", age)
	}
}

func TestRecoveryAdoptionIgnoresConfiguredExitPcts(t *testing.T) {
	exec := newFakeExecutor(100)
	exec.balances["MintHeld"] = 40
	prices := &fakePrices{prices: map[string]float64{"MintHeld": 2}}

	// Tighter operator settings must not shape adopted positions; their
	// entry price is synthetic, so the exits stay at the fixed 50/200.
	cfg := testConfig()
	cfg.StopLossPct = 20
	cfg.TakeProfitPct = 100
	m := startedManager(t, cfg, exec, prices, &memoryPositionStore{})

	positions := m.ActivePositions()
	if len(positions) != 1 {
		t.Fatalf("adopted positions = %d, want 1", len(positions))
	}
	if p := positions[0]; p.StopLossPrice != 1 || p.TakeProfitPrice != 6 {
		t.Errorf("adopted levels = SL %v, TP %v; want fixed 1, 6",
			p.StopLossPrice, p.TakeProfitPrice)
	}
}
