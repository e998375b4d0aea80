package marketdata

import (
	"context"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// PoolScan answers directly from chain state via RPC. It is the slowest and
// least informative provider, but keeps working when every indexer is down,
// so it sits last in the chain as the fallback of record.
type PoolScan struct {
	rpc solana.RPCClient
	now func() time.Time
}

// NewPoolScan creates the on-chain fallback provider.
func NewPoolScan(rpc solana.RPCClient) *PoolScan {
	return &PoolScan{rpc: rpc, now: time.Now}
}

func (p *PoolScan) Name() string { return "onchain" }

func (p *PoolScan) Price(ctx context.Context, address string) (float64, error) {
	return 0, ErrUnsupported
}

func (p *PoolScan) Liquidity(ctx context.Context, address string) (float64, error) {
	return 0, ErrUnsupported
}

func (p *PoolScan) Metrics(ctx context.Context, address string) (*domain.TokenQuote, error) {
	return nil, ErrUnsupported
}

func (p *PoolScan) Quote(ctx context.Context, from, to string, amount float64) (float64, error) {
	return 0, ErrUnsupported
}

// Info verifies the mint account exists and extracts its decimals. Symbol
// and name live in off-chain metadata, so they stay empty here.
func (p *PoolScan) Info(ctx context.Context, address string) (*domain.TokenInfo, error) {
	account, err := p.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNoData
	}

	info := &domain.TokenInfo{Address: address}
	if _, decimals, err := solana.ParseMintSupply(account.Data); err == nil {
		info.Decimals = decimals
	}
	return info, nil
}

// Age walks the mint's signature history and uses the oldest available
// block time. The RPC returns at most 1000 signatures per page, so for
// heavily traded mints this is a lower bound on the true age.
func (p *PoolScan) Age(ctx context.Context, address string) (float64, error) {
	sigs, err := p.rpc.GetSignaturesForAddress(ctx, address, 1000)
	if err != nil {
		return 0, err
	}
	if len(sigs) == 0 {
		return 0, ErrNoData
	}

	var oldest int64
	for _, s := range sigs {
		if s.BlockTime > 0 && (oldest == 0 || s.BlockTime < oldest) {
			oldest = s.BlockTime
		}
	}
	if oldest == 0 {
		return 0, ErrNoData
	}
	return p.now().Sub(time.Unix(oldest, 0)).Hours() / 24, nil
}

var _ Provider = (*PoolScan)(nil)
