// Package execution abstracts trade submission and wallet state so the
// trading logic stays independent of how orders actually reach the chain.
package execution

import (
	"context"
	"errors"

	"solana-sniper/internal/domain"
)

// Execution errors.
var (
	// ErrInsufficientBalance means the wallet cannot fund the trade.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoRoute means no swap route exists between the two tokens.
	ErrNoRoute = errors.New("no swap route")
)

// Executor submits swaps and reads wallet state.
type Executor interface {
	// GetPublicKey returns the wallet address.
	GetPublicKey() string

	// GetBalance returns the wallet's base currency balance in UI units.
	GetBalance(ctx context.Context) (float64, error)

	// GetTokenBalance returns the wallet's balance of one token mint.
	GetTokenBalance(ctx context.Context, mint string) (float64, error)

	// GetAllWalletTokens returns every token the wallet holds.
	GetAllWalletTokens(ctx context.Context) ([]domain.WalletHolding, error)

	// ExecuteTrade swaps amount of from into to within slippageBps and
	// returns the transaction ID.
	ExecuteTrade(ctx context.Context, from, to string, amount float64, slippageBps int) (string, error)
}
