package execution

import (
	"context"
	"errors"
	"testing"

	"solana-sniper/internal/solana"
)

type fakeRPC struct {
	lamports uint64
	accounts []solana.TokenAccount
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return nil, nil
}

func (f *fakeRPC) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	return f.lamports, nil
}

func (f *fakeRPC) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]solana.TokenAccount, error) {
	return f.accounts, nil
}

func (f *fakeRPC) GetSlot(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeRPC) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	return nil, nil
}

type fixedQuotes struct {
	rate float64 // output per input unit
}

func (q fixedQuotes) GetQuote(ctx context.Context, from, to string, amount float64) (float64, error) {
	return amount * q.rate, nil
}

func TestPaperExecutorTradeAdjustsBalances(t *testing.T) {
	rpc := &fakeRPC{lamports: 10 * lamportsPerSOL}
	e := NewPaperExecutor(rpc, fixedQuotes{rate: 1000}, "Wallet111", nil)
	ctx := context.Background()

	txID, err := e.ExecuteTrade(ctx, solana.WSOLMint, "MintAAA", 2, 300)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if txID == "" {
		t.Error("expected a transaction ID")
	}

	sol, err := e.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if sol != 8 {
		t.Errorf("SOL balance = %v, want 8", sol)
	}

	tokens, err := e.GetTokenBalance(ctx, "MintAAA")
	if err != nil {
		t.Fatalf("GetTokenBalance: %v", err)
	}
	// 2 * 1000 less the 3% slippage haircut.
	if want := 2000 * 0.97; tokens != want {
		t.Errorf("token balance = %v, want %v", tokens, want)
	}
}

func TestPaperExecutorInsufficientBalance(t *testing.T) {
	rpc := &fakeRPC{lamports: 1 * lamportsPerSOL}
	e := NewPaperExecutor(rpc, fixedQuotes{rate: 1000}, "Wallet111", nil)

	_, err := e.ExecuteTrade(context.Background(), solana.WSOLMint, "MintAAA", 5, 300)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("ExecuteTrade = %v, want ErrInsufficientBalance", err)
	}
}

func TestPaperExecutorNoRoute(t *testing.T) {
	rpc := &fakeRPC{lamports: 10 * lamportsPerSOL}
	e := NewPaperExecutor(rpc, fixedQuotes{rate: 0}, "Wallet111", nil)

	_, err := e.ExecuteTrade(context.Background(), solana.WSOLMint, "MintAAA", 1, 300)
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("ExecuteTrade = %v, want ErrNoRoute", err)
	}
}

func TestGetAllWalletTokensMergesOverlay(t *testing.T) {
	rpc := &fakeRPC{
		lamports: 10 * lamportsPerSOL,
		accounts: []solana.TokenAccount{
			{Mint: "MintAAA", Amount: 100},
			{Mint: "MintBBB", Amount: 50},
		},
	}
	e := NewPaperExecutor(rpc, fixedQuotes{rate: 2}, "Wallet111", nil)
	ctx := context.Background()

	// Sell all of MintBBB; it should vanish from holdings.
	if _, err := e.ExecuteTrade(ctx, "MintBBB", solana.WSOLMint, 50, 0); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}

	holdings, err := e.GetAllWalletTokens(ctx)
	if err != nil {
		t.Fatalf("GetAllWalletTokens: %v", err)
	}

	byMint := make(map[string]float64)
	for _, h := range holdings {
		byMint[h.Address] = h.Balance
	}
	if byMint["MintAAA"] != 100 {
		t.Errorf("MintAAA = %v, want 100", byMint["MintAAA"])
	}
	if _, ok := byMint["MintBBB"]; ok {
		t.Error("fully sold MintBBB should not appear in holdings")
	}
}
