package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

const lamportsPerSOL = 1e9

// QuoteSource estimates swap output; the market data aggregator satisfies it.
type QuoteSource interface {
	GetQuote(ctx context.Context, from, to string, amount float64) (float64, error)
}

// PaperExecutor simulates fills at quoted prices while reading real wallet
// state over RPC. Simulated trades accumulate in an in-memory overlay on
// top of the on-chain balances, so positions opened in one run look like
// real holdings to the rest of the engine.
type PaperExecutor struct {
	rpc    solana.RPCClient
	quotes QuoteSource
	pubkey string
	log    *zap.SugaredLogger

	mu     sync.Mutex
	deltas map[string]float64 // mint -> simulated balance delta, WSOL mint covers SOL
}

// NewPaperExecutor creates a simulated executor for the given wallet.
func NewPaperExecutor(rpc solana.RPCClient, quotes QuoteSource, pubkey string, log *zap.SugaredLogger) *PaperExecutor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PaperExecutor{
		rpc:    rpc,
		quotes: quotes,
		pubkey: pubkey,
		log:    log,
		deltas: make(map[string]float64),
	}
}

func (e *PaperExecutor) GetPublicKey() string { return e.pubkey }

// GetBalance returns SOL balance with simulated trades applied.
func (e *PaperExecutor) GetBalance(ctx context.Context) (float64, error) {
	lamports, err := e.rpc.GetBalance(ctx, e.pubkey)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	e.mu.Lock()
	delta := e.deltas[solana.WSOLMint]
	e.mu.Unlock()

	balance := float64(lamports)/lamportsPerSOL + delta
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// GetTokenBalance returns the holding of one mint with simulated trades
// applied.
func (e *PaperExecutor) GetTokenBalance(ctx context.Context, mint string) (float64, error) {
	if mint == solana.WSOLMint {
		return e.GetBalance(ctx)
	}

	accounts, err := e.rpc.GetTokenAccountsByOwner(ctx, e.pubkey)
	if err != nil {
		return 0, fmt.Errorf("get token accounts: %w", err)
	}

	var onChain float64
	for _, a := range accounts {
		if a.Mint == mint {
			onChain += a.Amount
		}
	}

	e.mu.Lock()
	delta := e.deltas[mint]
	e.mu.Unlock()

	balance := onChain + delta
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// GetAllWalletTokens merges on-chain token accounts with the simulated
// overlay. SOL is not included.
func (e *PaperExecutor) GetAllWalletTokens(ctx context.Context) ([]domain.WalletHolding, error) {
	accounts, err := e.rpc.GetTokenAccountsByOwner(ctx, e.pubkey)
	if err != nil {
		return nil, fmt.Errorf("get token accounts: %w", err)
	}

	balances := make(map[string]float64)
	for _, a := range accounts {
		balances[a.Mint] += a.Amount
	}

	e.mu.Lock()
	for mint, delta := range e.deltas {
		if mint == solana.WSOLMint {
			continue
		}
		balances[mint] += delta
	}
	e.mu.Unlock()

	holdings := make([]domain.WalletHolding, 0, len(balances))
	for mint, balance := range balances {
		if balance <= 0 {
			continue
		}
		holdings = append(holdings, domain.WalletHolding{Address: mint, Balance: balance})
	}
	return holdings, nil
}

// ExecuteTrade simulates a swap at the quoted rate, haircut by the maximum
// slippage, and returns a synthetic transaction ID.
func (e *PaperExecutor) ExecuteTrade(ctx context.Context, from, to string, amount float64, slippageBps int) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount %v", ErrInsufficientBalance, amount)
	}

	have, err := e.GetTokenBalance(ctx, from)
	if err != nil {
		return "", err
	}
	if have < amount {
		return "", fmt.Errorf("%w: have %v, need %v of %s", ErrInsufficientBalance, have, amount, from)
	}

	out, err := e.quotes.GetQuote(ctx, from, to, amount)
	if err != nil {
		return "", fmt.Errorf("quote %s -> %s: %w", from, to, err)
	}
	if out <= 0 {
		return "", fmt.Errorf("%w: %s -> %s", ErrNoRoute, from, to)
	}

	// Assume the worst fill the slippage setting allows.
	received := out * (1 - float64(slippageBps)/10_000)

	e.mu.Lock()
	e.deltas[from] -= amount
	e.deltas[to] += received
	e.mu.Unlock()

	txID := "paper-" + uuid.NewString()
	e.log.Infow("simulated trade",
		"tx", txID, "from", from, "to", to,
		"amountIn", amount, "amountOut", received, "slippageBps", slippageBps)
	return txID, nil
}

var _ Executor = (*PaperExecutor)(nil)
