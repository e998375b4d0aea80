package marketdata

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"solana-sniper/internal/domain"
)

const dexScreenerBaseURL = "https://api.dexscreener.com/latest/dex"

// DexScreener serves price, liquidity and market metrics from the public
// DexScreener pairs API. It cannot quote swaps.
type DexScreener struct {
	baseURL string
	client  *http.Client
}

// NewDexScreener creates a DexScreener provider. baseURL is overridable for
// tests; empty means the public endpoint.
func NewDexScreener(baseURL string, client *http.Client) *DexScreener {
	if baseURL == "" {
		baseURL = dexScreenerBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &DexScreener{baseURL: baseURL, client: client}
}

func (d *DexScreener) Name() string { return "dexscreener" }

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	ChainID   string `json:"chainId"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	FDV       float64 `json:"fdv"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"baseToken"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // unix millis
}

// bestPair fetches all pairs for a token and keeps the deepest Solana pool.
func (d *DexScreener) bestPair(ctx context.Context, address string) (*dexScreenerPair, error) {
	var resp dexScreenerResponse
	url := d.baseURL + "/tokens/" + address
	if err := getJSON(ctx, d.client, url, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pairs) == 0 {
		return nil, ErrNoData
	}

	var best *dexScreenerPair
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.ChainID != "solana" {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	if best == nil {
		return nil, ErrNoData
	}
	return best, nil
}

func (d *DexScreener) Price(ctx context.Context, address string) (float64, error) {
	pair, err := d.bestPair(ctx, address)
	if err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(pair.PriceUSD, 64)
	if err != nil {
		return 0, ErrNoData
	}
	return price, nil
}

func (d *DexScreener) Liquidity(ctx context.Context, address string) (float64, error) {
	pair, err := d.bestPair(ctx, address)
	if err != nil {
		return 0, err
	}
	return pair.Liquidity.USD, nil
}

func (d *DexScreener) Metrics(ctx context.Context, address string) (*domain.TokenQuote, error) {
	pair, err := d.bestPair(ctx, address)
	if err != nil {
		return nil, err
	}

	price, _ := strconv.ParseFloat(pair.PriceUSD, 64)
	q := &domain.TokenQuote{
		Address:        address,
		Price:          price,
		Volume24h:      pair.Volume.H24,
		Liquidity:      pair.Liquidity.USD,
		MarketCap:      pair.FDV,
		PriceChange24h: pair.PriceChange.H24,
	}
	if pair.PairCreatedAt > 0 {
		created := time.UnixMilli(pair.PairCreatedAt)
		q.AgeDays = time.Since(created).Hours() / 24
	}
	return q, nil
}

func (d *DexScreener) Quote(ctx context.Context, from, to string, amount float64) (float64, error) {
	return 0, ErrUnsupported
}

func (d *DexScreener) Info(ctx context.Context, address string) (*domain.TokenInfo, error) {
	pair, err := d.bestPair(ctx, address)
	if err != nil {
		return nil, err
	}
	return &domain.TokenInfo{
		Address: pair.BaseToken.Address,
		Symbol:  pair.BaseToken.Symbol,
		Name:    pair.BaseToken.Name,
	}, nil
}

func (d *DexScreener) Age(ctx context.Context, address string) (float64, error) {
	pair, err := d.bestPair(ctx, address)
	if err != nil {
		return 0, err
	}
	if pair.PairCreatedAt <= 0 {
		return 0, ErrNoData
	}
	created := time.UnixMilli(pair.PairCreatedAt)
	return time.Since(created).Hours() / 24, nil
}

var _ Provider = (*DexScreener)(nil)
