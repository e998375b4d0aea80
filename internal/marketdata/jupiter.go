package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

const (
	jupiterQuoteBaseURL = "https://quote-api.jup.ag/v6"
	jupiterPriceBaseURL = "https://price.jup.ag/v6"
)

// Jupiter serves swap quotes from the Jupiter routing engine and spot
// prices from its price API. It has no liquidity or metadata view.
type Jupiter struct {
	quoteURL string
	priceURL string
	client   *http.Client

	// decimals resolves mint decimals for amount scaling; defaults cover
	// WSOL and USDC, other mints fall back to 9.
	decimals map[string]int
}

// NewJupiter creates a Jupiter provider. URLs are overridable for tests.
func NewJupiter(quoteURL, priceURL string, client *http.Client) *Jupiter {
	if quoteURL == "" {
		quoteURL = jupiterQuoteBaseURL
	}
	if priceURL == "" {
		priceURL = jupiterPriceBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Jupiter{
		quoteURL: quoteURL,
		priceURL: priceURL,
		client:   client,
		decimals: map[string]int{
			solana.WSOLMint: 9,
			solana.USDCMint: 6,
		},
	}
}

func (j *Jupiter) Name() string { return "jupiter" }

func (j *Jupiter) mintDecimals(mint string) int {
	if d, ok := j.decimals[mint]; ok {
		return d
	}
	return 9
}

type jupiterPriceResponse struct {
	Data map[string]struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

func (j *Jupiter) Price(ctx context.Context, address string) (float64, error) {
	var resp jupiterPriceResponse
	u := fmt.Sprintf("%s/price?ids=%s", j.priceURL, url.QueryEscape(address))
	if err := getJSON(ctx, j.client, u, nil, &resp); err != nil {
		return 0, err
	}
	entry, ok := resp.Data[address]
	if !ok || entry.Price <= 0 {
		return 0, ErrNoData
	}
	return entry.Price, nil
}

func (j *Jupiter) Liquidity(ctx context.Context, address string) (float64, error) {
	return 0, ErrUnsupported
}

func (j *Jupiter) Metrics(ctx context.Context, address string) (*domain.TokenQuote, error) {
	return nil, ErrUnsupported
}

type jupiterQuoteResponse struct {
	OutAmount string `json:"outAmount"`
}

// Quote asks the router for the best route of amount (UI units) of from
// into to and returns the estimated output in UI units.
func (j *Jupiter) Quote(ctx context.Context, from, to string, amount float64) (float64, error) {
	inRaw := uint64(amount * math.Pow10(j.mintDecimals(from)))
	if inRaw == 0 {
		return 0, ErrNoData
	}

	u := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=%d&slippageBps=50",
		j.quoteURL, url.QueryEscape(from), url.QueryEscape(to), inRaw)

	var resp jupiterQuoteResponse
	if err := getJSON(ctx, j.client, u, nil, &resp); err != nil {
		return 0, err
	}

	outRaw, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil || outRaw == 0 {
		return 0, ErrNoData
	}
	return float64(outRaw) / math.Pow10(j.mintDecimals(to)), nil
}

func (j *Jupiter) Info(ctx context.Context, address string) (*domain.TokenInfo, error) {
	return nil, ErrUnsupported
}

func (j *Jupiter) Age(ctx context.Context, address string) (float64, error) {
	return 0, ErrUnsupported
}

var _ Provider = (*Jupiter)(nil)
