package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"solana-sniper/internal/domain"
)

const birdeyeBaseURL = "https://public-api.birdeye.so"

// Birdeye serves prices and holder statistics from the Birdeye API. It
// requires an API key; without one every call reports ErrUnsupported and
// the chain falls through to the next provider.
type Birdeye struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewBirdeye creates a Birdeye provider. An empty apiKey disables it.
func NewBirdeye(baseURL, apiKey string, client *http.Client) *Birdeye {
	if baseURL == "" {
		baseURL = birdeyeBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Birdeye{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (b *Birdeye) Name() string { return "birdeye" }

func (b *Birdeye) headers() map[string]string {
	return map[string]string{
		"X-API-KEY": b.apiKey,
		"x-chain":   "solana",
	}
}

type birdeyePriceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Value float64 `json:"value"`
	} `json:"data"`
}

func (b *Birdeye) Price(ctx context.Context, address string) (float64, error) {
	if b.apiKey == "" {
		return 0, ErrUnsupported
	}
	var resp birdeyePriceResponse
	u := b.baseURL + "/defi/price?address=" + url.QueryEscape(address)
	if err := getJSON(ctx, b.client, u, b.headers(), &resp); err != nil {
		return 0, err
	}
	if !resp.Success || resp.Data.Value <= 0 {
		return 0, ErrNoData
	}
	return resp.Data.Value, nil
}

type birdeyeOverviewResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Price          float64 `json:"price"`
		Liquidity      float64 `json:"liquidity"`
		V24hUSD        float64 `json:"v24hUSD"`
		MC             float64 `json:"mc"`
		PriceChange24h float64 `json:"priceChange24hPercent"`
		Holder         int     `json:"holder"`
		Symbol         string  `json:"symbol"`
		Name           string  `json:"name"`
		Decimals       int     `json:"decimals"`
		CreatedAt      int64   `json:"createdTime"` // unix seconds
	} `json:"data"`
}

func (b *Birdeye) overview(ctx context.Context, address string) (*birdeyeOverviewResponse, error) {
	var resp birdeyeOverviewResponse
	u := b.baseURL + "/defi/token_overview?address=" + url.QueryEscape(address)
	if err := getJSON(ctx, b.client, u, b.headers(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, ErrNoData
	}
	return &resp, nil
}

func (b *Birdeye) Liquidity(ctx context.Context, address string) (float64, error) {
	if b.apiKey == "" {
		return 0, ErrUnsupported
	}
	resp, err := b.overview(ctx, address)
	if err != nil {
		return 0, err
	}
	return resp.Data.Liquidity, nil
}

func (b *Birdeye) Metrics(ctx context.Context, address string) (*domain.TokenQuote, error) {
	if b.apiKey == "" {
		return nil, ErrUnsupported
	}
	resp, err := b.overview(ctx, address)
	if err != nil {
		return nil, err
	}

	q := &domain.TokenQuote{
		Address:        address,
		Price:          resp.Data.Price,
		Volume24h:      resp.Data.V24hUSD,
		Liquidity:      resp.Data.Liquidity,
		MarketCap:      resp.Data.MC,
		PriceChange24h: resp.Data.PriceChange24h,
		HolderCount:    resp.Data.Holder,
	}
	if resp.Data.CreatedAt > 0 {
		q.AgeDays = time.Since(time.Unix(resp.Data.CreatedAt, 0)).Hours() / 24
	}
	return q, nil
}

func (b *Birdeye) Quote(ctx context.Context, from, to string, amount float64) (float64, error) {
	return 0, ErrUnsupported
}

func (b *Birdeye) Info(ctx context.Context, address string) (*domain.TokenInfo, error) {
	if b.apiKey == "" {
		return nil, ErrUnsupported
	}
	resp, err := b.overview(ctx, address)
	if err != nil {
		return nil, err
	}
	return &domain.TokenInfo{
		Address:  address,
		Symbol:   resp.Data.Symbol,
		Name:     resp.Data.Name,
		Decimals: resp.Data.Decimals,
	}, nil
}

func (b *Birdeye) Age(ctx context.Context, address string) (float64, error) {
	if b.apiKey == "" {
		return 0, ErrUnsupported
	}
	resp, err := b.overview(ctx, address)
	if err != nil {
		return 0, err
	}
	if resp.Data.CreatedAt <= 0 {
		return 0, ErrNoData
	}
	return time.Since(time.Unix(resp.Data.CreatedAt, 0)).Hours() / 24, nil
}

var _ Provider = (*Birdeye)(nil)
